package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrRenderTimeout marks an avatar render that exceeded its polling ceiling.
// It is retryable: the job may still complete, and a re-invocation of the
// pipeline resumes polling from scratch.
var ErrRenderTimeout = errors.New("avatar render did not complete within the timeout")

// AvatarClient talks to the talking-head video generation service:
// submit a script + avatar + voice, then poll the job until a video URL
// comes back.
type AvatarClient struct {
	baseURL string
	apiKey  string
	http    *http.Client

	PollInterval  time.Duration
	RenderTimeout time.Duration
}

func NewAvatarClient(baseURL, apiKey string) *AvatarClient {
	return &AvatarClient{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		apiKey:        apiKey,
		http:          &http.Client{Timeout: 60 * time.Second},
		PollInterval:  5 * time.Second,
		RenderTimeout: 5 * time.Minute,
	}
}

type avatarSubmitRequest struct {
	VideoInputs []avatarVideoInput `json:"video_inputs"`
	Dimension   avatarDimension    `json:"dimension"`
}

type avatarVideoInput struct {
	Character avatarCharacter `json:"character"`
	Voice     avatarVoice     `json:"voice"`
}

type avatarCharacter struct {
	Type     string `json:"type"`
	AvatarID string `json:"avatar_id"`
}

type avatarVoice struct {
	Type      string `json:"type"`
	InputText string `json:"input_text"`
	VoiceID   string `json:"voice_id"`
}

type avatarDimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Submit requests a talking-head render and returns the job id.
func (c *AvatarClient) Submit(ctx context.Context, scriptText, avatarID, voiceID string) (string, error) {
	payload := avatarSubmitRequest{
		VideoInputs: []avatarVideoInput{{
			Character: avatarCharacter{Type: "avatar", AvatarID: avatarID},
			Voice:     avatarVoice{Type: "text", InputText: scriptText, VoiceID: voiceID},
		}},
		Dimension: avatarDimension{Width: 720, Height: 1280},
	}

	body, err := c.postJSON(ctx, "/v2/video/generate", payload)
	if err != nil {
		return "", err
	}

	videoID := gjson.GetBytes(body, "data.video_id").String()
	if videoID == "" {
		return "", fmt.Errorf("avatar service returned no video id: %s", string(body))
	}
	return videoID, nil
}

// Poll reports the job's current status and, once completed, its video URL.
func (c *AvatarClient) Poll(ctx context.Context, videoID string) (status, videoURL string, err error) {
	url := fmt.Sprintf("%s/v1/video_status.get?video_id=%s", c.baseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", "", fmt.Errorf("creating status request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("polling avatar job: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("reading status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("avatar status request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return gjson.GetBytes(body, "data.status").String(),
		gjson.GetBytes(body, "data.video_url").String(),
		nil
}

// WaitForVideo polls until the render completes, fails, or the bounded
// timeout elapses. Timeout is a distinct, retryable error.
func (c *AvatarClient) WaitForVideo(ctx context.Context, videoID string) (string, error) {
	deadline := time.Now().Add(c.RenderTimeout)

	for time.Now().Before(deadline) {
		status, videoURL, err := c.Poll(ctx, videoID)
		if err != nil {
			return "", err
		}

		switch status {
		case "completed":
			if videoURL == "" {
				return "", fmt.Errorf("avatar job %s completed without a video URL", videoID)
			}
			return videoURL, nil
		case "failed":
			return "", fmt.Errorf("avatar job %s reported failure", videoID)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}

	return "", fmt.Errorf("avatar job %s: %w", videoID, ErrRenderTimeout)
}

func (c *AvatarClient) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("avatar request to %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}
