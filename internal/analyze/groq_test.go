package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voskpaul/clipwizard/internal/pipeline"
	"github.com/voskpaul/clipwizard/models"
)

func TestBuildPromptDefaults(t *testing.T) {
	prompt := buildPrompt(models.TranscriptionData{Text: "hello"}, 120, models.RunOptions{})

	assert.Contains(t, prompt, "Target tone: professional")
	assert.Contains(t, prompt, "Target clip duration: 60 seconds")
	assert.Contains(t, prompt, "Focus on key insights and actionable content")
	assert.Contains(t, prompt, `Transcript: "hello"`)
	assert.Contains(t, prompt, "120.0 seconds long")
}

func TestBuildPromptWithOptionsAndSegments(t *testing.T) {
	transcript := models.TranscriptionData{
		Text: "a b",
		Segments: []models.TranscriptSegment{
			{StartTime: 0, EndTime: 5.5, Text: "a"},
			{StartTime: 5.5, EndTime: 9, Text: "b"},
		},
	}
	opts := models.RunOptions{Tone: "casual", TargetClipSeconds: 30, CustomPrompt: "focus on jokes"}
	prompt := buildPrompt(transcript, 9, opts)

	assert.Contains(t, prompt, "Target tone: casual")
	assert.Contains(t, prompt, "Target clip duration: 30 seconds")
	assert.Contains(t, prompt, "focus on jokes")
	assert.Contains(t, prompt, "[0.0 - 5.5] a")
	assert.NotContains(t, prompt, `Transcript: "a b"`)
}

func TestParseAnalysis(t *testing.T) {
	content := `{
		"key_moments": [
			{"start_time": 1, "end_time": 20, "title": "Opening", "description": "d", "confidence": 0.9},
			{"start_time": 30, "end_time": 50, "title": "", "confidence": 0.5}
		],
		"summary": "sum",
		"tags": ["a", "b"],
		"sentiment": "positive"
	}`

	result, err := parseAnalysis(content)
	require.NoError(t, err)
	require.Len(t, result.KeyMoments, 2)
	assert.Equal(t, "Opening", result.KeyMoments[0].Title)
	assert.Equal(t, "Clip 2", result.KeyMoments[1].Title)
	assert.Equal(t, "sum", result.Summary)
	assert.Equal(t, []string{"a", "b"}, result.Tags)
	assert.Equal(t, "positive", result.Sentiment)
}

func TestParseAnalysisGarbage(t *testing.T) {
	_, err := parseAnalysis("I could not find any moments, sorry!")
	assert.ErrorIs(t, err, pipeline.ErrAnalysisUnavailable)
}

func TestParseAnalysisEmptyObject(t *testing.T) {
	result, err := parseAnalysis("{}")
	require.NoError(t, err)
	assert.Empty(t, result.KeyMoments)
}
