package transcript

import (
	"encoding/json"
	"sort"
)

// Normalize locates a segments array inside an arbitrarily shaped results
// payload and returns the canonical Results, or nil when no known shape
// matches. The backend has shipped several nestings over time, so the
// patterns are tried in order:
//
//  1. {"results": {"segments": [...]}}
//  2. {"segments": [...]}
//  3. [...] (the payload itself is the segments array)
//  4. {"result": {"segments": [...]}}
//  5. any top-level value that is an object holding a segments array
func Normalize(payload []byte) *Results {
	if len(payload) == 0 {
		return nil
	}

	// Pattern 3: bare array.
	if segments, ok := decodeSegments(payload); ok {
		return build(segments, nil)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil
	}

	// Pattern 1: nested under "results".
	if inner, ok := top["results"]; ok {
		if res := fromContainer(inner); res != nil {
			return res
		}
	}

	// Pattern 2: segments at the top level.
	if res := fromObject(top); res != nil {
		return res
	}

	// Pattern 4: nested under "result".
	if inner, ok := top["result"]; ok {
		if res := fromContainer(inner); res != nil {
			return res
		}
	}

	// Pattern 5: scan every top-level value for a container shape.
	// Sorted keys keep the scan deterministic.
	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if res := fromContainer(top[k]); res != nil {
			return res
		}
	}

	return nil
}

// fromContainer normalizes a raw value expected to be an object with a
// segments array, plus optional metadata and speaker_stats siblings.
func fromContainer(raw json.RawMessage) *Results {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return fromObject(obj)
}

func fromObject(obj map[string]json.RawMessage) *Results {
	raw, ok := obj["segments"]
	if !ok {
		return nil
	}
	segments, ok := decodeSegments(raw)
	if !ok {
		return nil
	}
	return build(segments, obj)
}

func decodeSegments(raw json.RawMessage) ([]Segment, bool) {
	var segments []Segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return nil, false
	}
	if segments == nil {
		return nil, false
	}
	return segments, true
}

// build fills in metadata and speaker stats, passing through whatever the
// container carried and deriving the rest from the segments themselves.
func build(segments []Segment, container map[string]json.RawMessage) *Results {
	res := &Results{Segments: segments}

	if container != nil {
		if raw, ok := container["metadata"]; ok {
			json.Unmarshal(raw, &res.Metadata)
		}
		if raw, ok := container["speaker_stats"]; ok {
			json.Unmarshal(raw, &res.SpeakerStats)
		}
	}

	if res.Metadata.NumSegments == 0 {
		res.Metadata.NumSegments = len(segments)
	}
	if res.Metadata.Duration == 0 {
		for _, s := range segments {
			if s.End > res.Metadata.Duration {
				res.Metadata.Duration = s.End
			}
		}
	}
	if res.Metadata.NumSpeakers == 0 {
		res.Metadata.NumSpeakers = len(speakerSet(segments))
	}
	if res.SpeakerStats == nil && len(segments) > 0 {
		res.SpeakerStats = deriveStats(segments, res.Metadata.Duration)
	}

	return res
}

func speakerSet(segments []Segment) map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range segments {
		if s.Speaker != "" {
			set[s.Speaker] = struct{}{}
		}
	}
	return set
}

func deriveStats(segments []Segment, duration float64) map[string]SpeakerStat {
	stats := make(map[string]SpeakerStat)
	for _, s := range segments {
		speaker := s.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		st := stats[speaker]
		st.Segments++
		if s.End > s.Start {
			st.SpeakingTime += s.End - s.Start
		}
		stats[speaker] = st
	}
	if duration > 0 {
		for speaker, st := range stats {
			st.Percentage = st.SpeakingTime / duration * 100
			stats[speaker] = st
		}
	}
	return stats
}
