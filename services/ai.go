package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shah-aman/ai-ugc-sub000/models"
)

// AIService covers every completion-model and speech-to-text call: market
// research, script drafting, transcript alignment and audio transcription.
type AIService struct {
	client *openai.Client
	model  string
}

func NewAIService(apiKey, model string) *AIService {
	return &AIService{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// ResearchProduct asks the completion model for a short market and
// influencer-fit brief the script prompt builds on.
func (s *AIService) ResearchProduct(ctx context.Context, product *models.Product) (string, error) {
	prompt := fmt.Sprintf(`You are a short-form ads strategist. Product: %s
Description: %s
Price: %s

Write a concise brief (max 200 words) covering: target audience, the single
strongest selling angle for a UGC-style ad, and the tone a creator should use.`,
		product.Name, product.Description, product.Price)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("research request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from completion model")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type draftedScript struct {
	FullScript string `json:"full_script"`
	Segments   []struct {
		Role            string `json:"role"`
		Content         string `json:"content"`
		VisualDirection string `json:"visual_direction"`
	} `json:"segments"`
}

// DraftScript generates the ad narrative as an ordered list of role-tagged
// segments. The model output is schema-validated; malformed output is a
// hard failure, never coerced.
func (s *AIService) DraftScript(ctx context.Context, product *models.Product, research string) (string, []models.Segment, error) {
	systemPrompt := fmt.Sprintf(`You write 30-45 second UGC product ad scripts.
Return ONLY JSON with this shape:
{
  "full_script": "<the complete spoken narrative>",
  "segments": [
    {"role": "%s" | "%s" | "%s", "content": "<spoken text>", "visual_direction": "<what is on screen>"}
  ]
}
Rules: the first and last segment must be "%s". Use "%s" for moments showing
the product itself and "%s" for lifestyle/context footage. 4 to 7 segments.
The concatenated segment contents must equal full_script.`,
		models.RolePresenter, models.RoleProductBRoll, models.RoleGenericBRoll,
		models.RolePresenter, models.RoleProductBRoll, models.RoleGenericBRoll)

	userPrompt := fmt.Sprintf("Product: %s\nDescription: %s\n\nResearch brief:\n%s",
		product.Name, product.Description, research)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.8,
	})
	if err != nil {
		return "", nil, fmt.Errorf("script draft request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("no response from completion model")
	}

	var drafted draftedScript
	if err := json.Unmarshal([]byte(stripJSONFences(resp.Choices[0].Message.Content)), &drafted); err != nil {
		return "", nil, fmt.Errorf("script draft is not valid JSON: %w", err)
	}
	if drafted.FullScript == "" || len(drafted.Segments) == 0 {
		return "", nil, fmt.Errorf("script draft missing full_script or segments")
	}

	segments := make([]models.Segment, 0, len(drafted.Segments))
	for i, seg := range drafted.Segments {
		switch seg.Role {
		case models.RolePresenter, models.RoleProductBRoll, models.RoleGenericBRoll:
		default:
			return "", nil, fmt.Errorf("segment %d has unknown role %q", i, seg.Role)
		}
		if strings.TrimSpace(seg.Content) == "" {
			return "", nil, fmt.Errorf("segment %d has empty content", i)
		}
		segments = append(segments, models.Segment{
			Role:            seg.Role,
			Content:         seg.Content,
			VisualDirection: seg.VisualDirection,
		})
	}

	return drafted.FullScript, segments, nil
}

type alignmentResponse struct {
	Windows []models.AlignedWindow `json:"windows"`
}

// AlignSegments asks the completion model to match each b-roll segment's
// text to the transcript span it corresponds to. brollIndexes are the
// indexes (into segments) of the b-roll-tagged segments; exactly one window
// per index must come back or the whole alignment fails.
func (s *AIService) AlignSegments(ctx context.Context, transcript []models.TranscriptSegment, segments []models.Segment, brollIndexes []int) ([]models.AlignedWindow, error) {
	if len(transcript) == 0 {
		return nil, fmt.Errorf("transcript is empty")
	}
	if len(brollIndexes) == 0 {
		return nil, fmt.Errorf("no b-roll segments to align")
	}

	var sb strings.Builder
	sb.WriteString("TRANSCRIPT (start - end: text):\n")
	for _, t := range transcript {
		fmt.Fprintf(&sb, "%.2f - %.2f: %s\n", t.Start, t.End, t.Text)
	}
	sb.WriteString("\nB-ROLL SEGMENTS:\n")
	for _, idx := range brollIndexes {
		fmt.Fprintf(&sb, "index %d: %s\n", idx, segments[idx].Content)
	}

	systemPrompt := `Each b-roll segment below is part of the spoken narrative in the
transcript. For every segment, find the transcript span where its text is spoken and
return its time window. Return ONLY JSON:
{"windows": [{"segment_index": <int>, "start": <seconds>, "end": <seconds>, "source_text": "<segment text>"}]}
One window per segment, ordered by start, non-overlapping, end > start.`

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("alignment request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from completion model")
	}

	var aligned alignmentResponse
	if err := json.Unmarshal([]byte(stripJSONFences(resp.Choices[0].Message.Content)), &aligned); err != nil {
		return nil, fmt.Errorf("alignment response is not valid JSON: %w", err)
	}
	if err := ValidateAlignment(aligned.Windows, brollIndexes); err != nil {
		return nil, err
	}
	return aligned.Windows, nil
}

// ValidateAlignment enforces the alignment contract: exactly one window per
// b-roll segment, matching indexes, positive durations. A partial alignment
// is never accepted.
func ValidateAlignment(windows []models.AlignedWindow, brollIndexes []int) error {
	if len(windows) != len(brollIndexes) {
		return fmt.Errorf("alignment returned %d windows for %d b-roll segments", len(windows), len(brollIndexes))
	}
	seen := make(map[int]bool, len(brollIndexes))
	for _, idx := range brollIndexes {
		seen[idx] = false
	}
	for i, w := range windows {
		matched, ok := seen[w.SegmentIndex]
		if !ok {
			return fmt.Errorf("window %d references segment %d which is not a b-roll segment", i, w.SegmentIndex)
		}
		if matched {
			return fmt.Errorf("segment %d was aligned twice", w.SegmentIndex)
		}
		seen[w.SegmentIndex] = true
		if w.End <= w.Start {
			return fmt.Errorf("window for segment %d has non-positive duration [%.2f, %.2f]", w.SegmentIndex, w.Start, w.End)
		}
	}
	return nil
}

// Transcribe submits extracted audio to the speech-to-text service and
// returns its time-coded segments.
func (s *AIService) Transcribe(ctx context.Context, audioPath string) ([]models.TranscriptSegment, error) {
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	if len(resp.Segments) == 0 {
		return nil, fmt.Errorf("transcription returned no segments")
	}

	segments := make([]models.TranscriptSegment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, models.TranscriptSegment{
			Text:  strings.TrimSpace(seg.Text),
			Start: seg.Start,
			End:   seg.End,
		})
	}
	return segments, nil
}

// stripJSONFences removes markdown code fences some models wrap around JSON.
func stripJSONFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
