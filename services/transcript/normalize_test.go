package transcript

import (
	"testing"
)

const segmentJSON = `[
	{"speaker": "SPEAKER_00", "start": 0, "end": 5, "text": "hi"},
	{"speaker": "SPEAKER_01", "start": 5, "end": 9.5, "text": "hello there"},
	{"speaker": "SPEAKER_00", "start": 9.5, "end": 12, "text": "how are you"}
]`

func checkSegments(t *testing.T, res *Results) {
	t.Helper()

	if res == nil {
		t.Fatal("expected non-nil results")
	}
	if len(res.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(res.Segments))
	}
	if res.Segments[0].Speaker != "SPEAKER_00" || res.Segments[0].Text != "hi" {
		t.Errorf("first segment mangled: %+v", res.Segments[0])
	}
	if res.Segments[1].End != 9.5 {
		t.Errorf("expected end 9.5, got %v", res.Segments[1].End)
	}
	if res.Segments[2].Text != "how are you" {
		t.Errorf("last segment mangled: %+v", res.Segments[2])
	}
}

func TestNormalizeRecognizedShapes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"nested under results", `{"results": {"segments": ` + segmentJSON + `}}`},
		{"top level segments", `{"segments": ` + segmentJSON + `}`},
		{"bare array", segmentJSON},
		{"nested under result", `{"result": {"segments": ` + segmentJSON + `}}`},
		{"arbitrary key scan", `{"payload": {"segments": ` + segmentJSON + `}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkSegments(t, Normalize([]byte(tc.payload)))
		})
	}
}

func TestNormalizeUnrecognized(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"empty", ``},
		{"not json", `not json at all`},
		{"empty object", `{}`},
		{"no segments anywhere", `{"results": {"transcript": "hi"}, "other": 42}`},
		{"segments not an array", `{"segments": {"speaker": "SPEAKER_00"}}`},
		{"segments null", `{"segments": null}`},
		{"scalar", `42`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if res := Normalize([]byte(tc.payload)); res != nil {
				t.Fatalf("expected nil, got %+v", res)
			}
		})
	}
}

func TestNormalizeMetadataPassthrough(t *testing.T) {
	payload := `{"results": {
		"segments": ` + segmentJSON + `,
		"metadata": {"duration": 60, "language": "en", "num_speakers": 2, "num_segments": 3},
		"speaker_stats": {"SPEAKER_00": {"speaking_time": 7.5, "percentage": 12.5, "segments": 2}}
	}}`

	res := Normalize([]byte(payload))
	checkSegments(t, res)

	if res.Metadata.Duration != 60 {
		t.Errorf("expected duration 60, got %v", res.Metadata.Duration)
	}
	if res.Metadata.Language != "en" {
		t.Errorf("expected language en, got %q", res.Metadata.Language)
	}
	if res.SpeakerStats["SPEAKER_00"].Segments != 2 {
		t.Errorf("speaker stats not passed through: %+v", res.SpeakerStats)
	}
}

func TestNormalizeDerivedMetadata(t *testing.T) {
	res := Normalize([]byte(segmentJSON))
	checkSegments(t, res)

	if res.Metadata.Duration != 12 {
		t.Errorf("expected derived duration 12, got %v", res.Metadata.Duration)
	}
	if res.Metadata.NumSpeakers != 2 {
		t.Errorf("expected 2 speakers, got %d", res.Metadata.NumSpeakers)
	}
	if res.Metadata.NumSegments != 3 {
		t.Errorf("expected 3 segments, got %d", res.Metadata.NumSegments)
	}

	stat, ok := res.SpeakerStats["SPEAKER_00"]
	if !ok {
		t.Fatalf("expected derived stats for SPEAKER_00, got %+v", res.SpeakerStats)
	}
	if stat.Segments != 2 || stat.SpeakingTime != 7.5 {
		t.Errorf("unexpected stat: %+v", stat)
	}
}

func TestNormalizePrefersResultsOverScan(t *testing.T) {
	payload := `{
		"decoy": {"segments": [{"speaker": "X", "start": 0, "end": 1, "text": "wrong"}]},
		"results": {"segments": ` + segmentJSON + `}
	}`

	res := Normalize([]byte(payload))
	checkSegments(t, res)
}
