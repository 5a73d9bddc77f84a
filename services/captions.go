package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// CaptionsClient talks to the captioning service: submit a finished video
// with a caption template, poll until the burned-in result is ready, then
// hand back its download URL.
type CaptionsClient struct {
	baseURL string
	apiKey  string
	http    *http.Client

	PollInterval time.Duration
	PollTimeout  time.Duration
}

func NewCaptionsClient(baseURL, apiKey string) *CaptionsClient {
	return &CaptionsClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 60 * time.Second},
		PollInterval: 5 * time.Second,
		PollTimeout:  3 * time.Minute,
	}
}

type captionsSubmitRequest struct {
	VideoURL   string `json:"video_url"`
	TemplateID string `json:"template_id"`
}

// Submit starts a captioning job and returns its operation id.
func (c *CaptionsClient) Submit(ctx context.Context, videoURL, templateID string) (string, error) {
	data, err := json.Marshal(captionsSubmitRequest{VideoURL: videoURL, TemplateID: templateID})
	if err != nil {
		return "", fmt.Errorf("marshalling captions request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/captions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating captions request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting captions job: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading captions response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("captions submit failed with status %d: %s", resp.StatusCode, string(body))
	}

	operationID := gjson.GetBytes(body, "operation_id").String()
	if operationID == "" {
		return "", fmt.Errorf("captions service returned no operation id: %s", string(body))
	}
	return operationID, nil
}

// WaitForDownload polls the job over a fixed ceiling and returns the
// captioned video's download URL.
func (c *CaptionsClient) WaitForDownload(ctx context.Context, operationID string) (string, error) {
	deadline := time.Now().Add(c.PollTimeout)

	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/captions/"+operationID, nil)
		if err != nil {
			return "", fmt.Errorf("creating poll request: %w", err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("polling captions job: %w", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return "", fmt.Errorf("reading poll response: %w", readErr)
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("captions poll failed with status %d: %s", resp.StatusCode, string(body))
		}

		switch gjson.GetBytes(body, "state").String() {
		case "complete":
			downloadURL := gjson.GetBytes(body, "download_url").String()
			if downloadURL == "" {
				return "", fmt.Errorf("captions job %s completed without a download URL", operationID)
			}
			return downloadURL, nil
		case "failed":
			return "", fmt.Errorf("captions job %s reported failure: %s", operationID, gjson.GetBytes(body, "error").String())
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}

	return "", fmt.Errorf("captions job %s did not complete within %s", operationID, c.PollTimeout)
}
