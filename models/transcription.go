package models

// TranscriptionData is a full transcript plus its timestamped segments.
type TranscriptionData struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
}

// TranscriptSegment is one timestamped span of spoken text. Offsets are in
// seconds; segments are ordered ascending by start and never overlap.
type TranscriptSegment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// CandidateSegment is one highlight proposed by the content analyzer.
type CandidateSegment struct {
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// AnalysisResult is everything the content analyzer returns for a transcript.
type AnalysisResult struct {
	KeyMoments []CandidateSegment `json:"key_moments"`
	Summary    string             `json:"summary"`
	Tags       []string           `json:"tags"`
	Sentiment  string             `json:"sentiment"`
}
