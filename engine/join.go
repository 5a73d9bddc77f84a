package engine

import (
	"context"
	"fmt"
	"os"
)

// Join composites the b-roll clips onto the main clip at their aligned
// windows and remuxes the result with the main clip's original, unmodified
// audio track. overlayPaths and windows are index-aligned and must be
// ordered by window start.
func (e *Engine) Join(ctx context.Context, mainPath string, overlayPaths []string, windows []OverlayWindow, width, height int, outputPath string) error {
	if len(overlayPaths) != len(windows) {
		return fmt.Errorf("got %d overlay clips but %d windows", len(overlayPaths), len(windows))
	}
	for _, p := range overlayPaths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("overlay clip missing: %w", err)
		}
	}

	graph, err := BuildOverlayGraph(windows, width, height)
	if err != nil {
		return fmt.Errorf("building filter graph: %w", err)
	}

	args := []string{"-y", "-i", mainPath}
	for _, p := range overlayPaths {
		args = append(args, "-i", p)
	}
	args = append(args,
		"-filter_complex", graph,
		"-map", "[vout]",
		"-map", "0:a",
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-movflags", "+faststart",
		outputPath,
	)

	if err := e.runFFmpeg(ctx, args...); err != nil {
		return fmt.Errorf("failed to join overlays: %w", err)
	}

	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		return fmt.Errorf("joined video was not created: %s", outputPath)
	}
	return nil
}
