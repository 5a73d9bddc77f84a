package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// VoiceClient converts the rendered avatar audio into a presenter's cloned
// voice via the speech-to-speech endpoint of the voice service.
type VoiceClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewVoiceClient(baseURL, apiKey string) *VoiceClient {
	return &VoiceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 3 * time.Minute},
	}
}

// Convert submits an audio track and returns the same speech re-voiced with
// the given voice id.
func (c *VoiceClient) Convert(ctx context.Context, voiceID string, audio []byte) ([]byte, error) {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	audioWriter, err := writer.CreateFormFile("audio", "speech.wav")
	if err != nil {
		return nil, fmt.Errorf("creating form file field: %w", err)
	}
	if _, err := audioWriter.Write(audio); err != nil {
		return nil, fmt.Errorf("writing audio field: %w", err)
	}
	if err := writer.WriteField("model_id", "speech_to_speech_v1"); err != nil {
		return nil, fmt.Errorf("writing model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing form writer: %w", err)
	}

	url := fmt.Sprintf("%s/v1/speech-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &requestBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending voice conversion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("voice conversion failed with status %d: %s", resp.StatusCode, string(body))
	}

	converted, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading converted audio: %w", err)
	}
	if len(converted) == 0 {
		return nil, fmt.Errorf("voice conversion returned no audio")
	}
	return converted, nil
}
