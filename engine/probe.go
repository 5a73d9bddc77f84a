package engine

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/shah-aman/ai-ugc-sub000/models"
)

var probeHTTP = &http.Client{Timeout: 2 * time.Minute}

// Probe downloads a remote video into a scoped temp directory, inspects it
// with ffprobe and reports duration, container, frame rate and resolution.
// Metadata is best-effort: any download, parse or missing-stream condition
// returns nil instead of an error, and the temp directory is removed on
// every exit path.
func (e *Engine) Probe(ctx context.Context, videoURL string) *models.VideoDetails {
	tempDir, err := os.MkdirTemp("", "probe-"+uuid.New().String()[:8])
	if err != nil {
		log.Printf("Warning: probe could not create temp dir: %v", err)
		return nil
	}
	defer os.RemoveAll(tempDir)

	videoPath := filepath.Join(tempDir, "probe.mp4")
	if err := downloadFile(ctx, videoURL, videoPath); err != nil {
		log.Printf("Warning: probe download failed: %v", err)
		return nil
	}

	report, err := e.runFFprobe(ctx,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	if err != nil {
		log.Printf("Warning: ffprobe failed: %v", err)
		return nil
	}

	details := parseProbeReport(report)
	if details == nil {
		log.Printf("Warning: probe report had no video stream")
	}
	return details
}

// parseProbeReport extracts metadata from an ffprobe JSON report. Returns
// nil when the report carries no video stream.
func parseProbeReport(report []byte) *models.VideoDetails {
	video := gjson.GetBytes(report, `streams.#(codec_type=="video")`)
	if !video.Exists() {
		return nil
	}

	return &models.VideoDetails{
		Duration:   gjson.GetBytes(report, "format.duration").Float(),
		FileFormat: gjson.GetBytes(report, "format.format_name").String(),
		Framerate:  parseFrameRate(video.Get("avg_frame_rate").String()),
		Resolution: models.Resolution{
			Width:  int(video.Get("width").Int()),
			Height: int(video.Get("height").Int()),
		},
	}
}

// parseFrameRate computes a frame rate from ffprobe's rational notation,
// e.g. "30000/1001" -> 29.97. A zero denominator reports 0.
func parseFrameRate(rational string) float64 {
	parts := strings.Split(rational, "/")
	if len(parts) != 2 {
		if v, err := strconv.ParseFloat(rational, 64); err == nil {
			return v
		}
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// downloadFile streams a URL to disk.
func downloadFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	resp, err := probeHTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{url: url, status: resp.StatusCode}
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

type httpStatusError struct {
	url    string
	status int
}

func (e *httpStatusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.status) + " fetching " + e.url
}
