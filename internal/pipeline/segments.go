package pipeline

import (
	"fmt"
	"math"

	"github.com/voskpaul/clipwizard/models"
)

const (
	minSegmentSeconds  = 1.0
	fallbackSegments   = 3
	fallbackConfidence = 0.3
)

// sanitizeCandidates drops analyzer output that cannot produce a playable
// clip: spans reaching outside [0, duration], inverted or sub-second spans,
// NaN bounds. Order is preserved.
func sanitizeCandidates(candidates []models.CandidateSegment, durationSeconds float64) []models.CandidateSegment {
	var out []models.CandidateSegment
	for _, c := range candidates {
		if !validBounds(c.StartTime, c.EndTime, durationSeconds) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// validBounds reports whether [start,end] is a cuttable span of a video of
// the given duration.
func validBounds(start, end, durationSeconds float64) bool {
	if math.IsNaN(start) || math.IsNaN(end) {
		return false
	}
	return start >= 0 && end <= durationSeconds && end-start >= minSegmentSeconds
}

// fallbackAnalysis partitions the video into equal spans when the analyzer
// returns nothing usable. The run still completes; clips are just less
// targeted.
func fallbackAnalysis(durationSeconds, targetClipSeconds float64) models.AnalysisResult {
	n := fallbackSegments
	if targetClipSeconds > 0 {
		if byTarget := int(durationSeconds / targetClipSeconds); byTarget < n {
			n = byTarget
		}
	}
	if n < 1 {
		n = 1
	}

	span := durationSeconds / float64(n)
	moments := make([]models.CandidateSegment, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * span
		end := start + span
		if i == n-1 {
			end = durationSeconds
		}
		moments = append(moments, models.CandidateSegment{
			StartTime:   start,
			EndTime:     end,
			Title:       fmt.Sprintf("Highlight %d", i+1),
			Description: "Automatically selected span",
			Confidence:  fallbackConfidence,
		})
	}

	return models.AnalysisResult{
		KeyMoments: moments,
		Summary:    "Automatic segmentation of the source video.",
		Tags:       []string{"auto"},
		Sentiment:  "neutral",
	}
}
