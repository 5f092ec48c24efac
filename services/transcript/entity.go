package transcript

// Segment is one diarized utterance: who spoke, when, and what was said.
type Segment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

type Metadata struct {
	Duration    float64 `json:"duration"`
	Language    string  `json:"language,omitempty"`
	NumSpeakers int     `json:"num_speakers"`
	NumSegments int     `json:"num_segments"`
}

type SpeakerStat struct {
	SpeakingTime float64 `json:"speaking_time"`
	Percentage   float64 `json:"percentage"`
	Segments     int     `json:"segments"`
}

// Results is the canonical shape every recognized backend payload is
// normalized into.
type Results struct {
	Segments     []Segment              `json:"segments"`
	Metadata     Metadata               `json:"metadata"`
	SpeakerStats map[string]SpeakerStat `json:"speaker_stats,omitempty"`
}
