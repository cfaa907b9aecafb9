// Package analyze asks a Groq-hosted language model to pick the most
// engaging moments out of a transcript.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conneroisu/groq-go"
	"github.com/sirupsen/logrus"

	"github.com/voskpaul/clipwizard/internal/pipeline"
	"github.com/voskpaul/clipwizard/models"
)

const systemPrompt = `You are a short-form video editor. You receive transcripts of long-form
videos and identify the spans most worth cutting into standalone clips.
Always answer with a single JSON object and nothing else.`

// GroqAnalyzer implements pipeline.Analyzer on the Groq chat completion API
// in JSON mode.
type GroqAnalyzer struct {
	client *groq.Client
	model  groq.ChatModel
	log    *logrus.Logger
}

// NewGroqAnalyzer builds an analyzer for the given model name.
func NewGroqAnalyzer(apiKey, model string, log *logrus.Logger) (*GroqAnalyzer, error) {
	client, err := groq.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}
	return &GroqAnalyzer{
		client: client,
		model:  groq.ChatModel(model),
		log:    log,
	}, nil
}

// Analyze sends the transcript to the model and parses its key moments.
// Wraps pipeline.ErrAnalysisUnavailable when the engine cannot be reached or
// answers with something unparsable.
func (a *GroqAnalyzer) Analyze(ctx context.Context, transcript models.TranscriptionData, durationSeconds float64, opts models.RunOptions) (models.AnalysisResult, error) {
	resp, err := a.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model: a.model,
		Messages: []groq.ChatCompletionMessage{
			{Role: groq.RoleSystem, Content: systemPrompt},
			{Role: groq.RoleUser, Content: buildPrompt(transcript, durationSeconds, opts)},
		},
		ResponseFormat: &groq.ChatResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", pipeline.ErrAnalysisUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return models.AnalysisResult{}, fmt.Errorf("%w: no choices in response", pipeline.ErrAnalysisUnavailable)
	}

	result, err := parseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	a.log.WithFields(logrus.Fields{
		"key_moments": len(result.KeyMoments),
		"sentiment":   result.Sentiment,
	}).Info("Content analysis completed")
	return result, nil
}

// buildPrompt renders the analysis instructions. Tone, target clip length,
// and the caller's custom prompt all have defaults matching the product's
// original behavior.
func buildPrompt(transcript models.TranscriptionData, durationSeconds float64, opts models.RunOptions) string {
	tone := opts.Tone
	if tone == "" {
		tone = "professional"
	}
	target := opts.TargetClipSeconds
	if target <= 0 {
		target = 60
	}
	custom := opts.CustomPrompt
	if custom == "" {
		custom = "Focus on key insights and actionable content"
	}

	var b strings.Builder
	b.WriteString("Analyze the following video transcript and identify the most engaging moments for short-form social media content.\n\n")
	fmt.Fprintf(&b, "Requirements:\n- Target tone: %s\n- Target clip duration: %d seconds\n- Additional instructions: %s\n", tone, target, custom)
	fmt.Fprintf(&b, "- The video is %.1f seconds long; every moment must fit inside [0, %.1f].\n\n", durationSeconds, durationSeconds)

	if len(transcript.Segments) > 0 {
		b.WriteString("Transcript with timestamps:\n")
		for _, s := range transcript.Segments {
			fmt.Fprintf(&b, "[%.1f - %.1f] %s\n", s.StartTime, s.EndTime, strings.TrimSpace(s.Text))
		}
	} else {
		fmt.Fprintf(&b, "Transcript: %q\n", transcript.Text)
	}

	b.WriteString(`
Respond with a JSON object containing:
1. "key_moments": array of 3-5 moments, each with "start_time", "end_time" (seconds), "title", "description", and "confidence" (0-1)
2. "summary": brief summary of the content
3. "tags": relevant tags for the content
4. "sentiment": overall sentiment (positive/neutral/negative)

Focus on moments that would be most engaging for social media audiences.`)
	return b.String()
}

// parseAnalysis decodes the model's JSON answer. Moments without a title get
// a positional one so clips always have names.
func parseAnalysis(content string) (models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: parse response: %v", pipeline.ErrAnalysisUnavailable, err)
	}
	for i := range result.KeyMoments {
		if strings.TrimSpace(result.KeyMoments[i].Title) == "" {
			result.KeyMoments[i].Title = fmt.Sprintf("Clip %d", i+1)
		}
	}
	return result, nil
}
