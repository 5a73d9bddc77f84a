package engine

import (
	"context"
	"fmt"
	"log"
	"os/exec"
)

// Engine shells out to the local ffmpeg/ffprobe toolchain. All media
// manipulation goes through this type so the orchestration logic can be
// tested against fakes instead of a real binary.
type Engine struct {
	FFmpegBin  string
	FFprobeBin string
}

func New() *Engine {
	return &Engine{FFmpegBin: "ffmpeg", FFprobeBin: "ffprobe"}
}

// Available reports whether both binaries are on PATH, for the health check.
func (e *Engine) Available() bool {
	if _, err := exec.LookPath(e.FFmpegBin); err != nil {
		return false
	}
	if _, err := exec.LookPath(e.FFprobeBin); err != nil {
		return false
	}
	return true
}

func (e *Engine) runFFmpeg(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, e.FFmpegBin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("FFmpeg output: %s", string(output))
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

func (e *Engine) runFFprobe(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.FFprobeBin, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return output, nil
}

// ExtractAudio pulls the audio track out of a video as 16kHz mono WAV, the
// layout the speech-to-text service expects.
func (e *Engine) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	return e.runFFmpeg(ctx,
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		audioPath,
	)
}

// ReplaceAudio remuxes a video with a different audio track, copying the
// video stream untouched. Used after voice conversion.
func (e *Engine) ReplaceAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return e.runFFmpeg(ctx,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		outputPath,
	)
}
