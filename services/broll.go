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

// BRollClient talks to the image-to-video generation service. One short
// clip is generated per b-roll segment from a still image plus the
// segment's visual direction.
type BRollClient struct {
	baseURL string
	apiKey  string
	http    *http.Client

	PollInterval time.Duration
	PollTimeout  time.Duration
}

func NewBRollClient(baseURL, apiKey string) *BRollClient {
	return &BRollClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 60 * time.Second},
		PollInterval: 5 * time.Second,
		PollTimeout:  3 * time.Minute,
	}
}

type brollTaskRequest struct {
	ImageURL    string  `json:"image_url"`
	Prompt      string  `json:"prompt"`
	AspectRatio string  `json:"aspect_ratio"`
	Duration    float64 `json:"duration"`
}

// Submit starts an image-to-video task and returns its id.
func (c *BRollClient) Submit(ctx context.Context, imageURL, prompt string, duration float64) (string, error) {
	payload := brollTaskRequest{
		ImageURL:    imageURL,
		Prompt:      prompt,
		AspectRatio: "9:16",
		Duration:    duration,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling task request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/tasks", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating task request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting b-roll task: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading task response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("b-roll task submit failed with status %d: %s", resp.StatusCode, string(body))
	}

	taskID := gjson.GetBytes(body, "task_id").String()
	if taskID == "" {
		return "", fmt.Errorf("b-roll service returned no task id: %s", string(body))
	}
	return taskID, nil
}

// Generate submits one image-to-video task and polls it to completion,
// returning the generated clip URL.
func (c *BRollClient) Generate(ctx context.Context, imageURL, prompt string, duration float64) (string, error) {
	taskID, err := c.Submit(ctx, imageURL, prompt, duration)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(c.PollTimeout)
	for time.Now().Before(deadline) {
		status, clipURL, err := c.poll(ctx, taskID)
		if err != nil {
			return "", err
		}

		switch status {
		case "succeeded":
			if clipURL == "" {
				return "", fmt.Errorf("b-roll task %s succeeded without an output URL", taskID)
			}
			return clipURL, nil
		case "failed":
			return "", fmt.Errorf("b-roll task %s reported failure", taskID)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}

	return "", fmt.Errorf("b-roll task %s did not complete within %s", taskID, c.PollTimeout)
}

func (c *BRollClient) poll(ctx context.Context, taskID string) (status, clipURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/tasks/"+taskID, nil)
	if err != nil {
		return "", "", fmt.Errorf("creating poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("polling b-roll task: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("reading poll response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("b-roll poll failed with status %d: %s", resp.StatusCode, string(body))
	}

	return gjson.GetBytes(body, "status").String(),
		gjson.GetBytes(body, "output.video_urls.0").String(),
		nil
}
