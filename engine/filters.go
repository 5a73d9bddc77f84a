package engine

import (
	"fmt"
	"strings"
)

// OverlayWindow is the time span one b-roll clip occupies on the main clip,
// in seconds from the start of the main clip's audio.
type OverlayWindow struct {
	Start float64
	End   float64
}

func (w OverlayWindow) Duration() float64 {
	return w.End - w.Start
}

// ValidateWindows rejects windows that are empty, out of order or
// overlapping. Overlapping windows would compose into malformed output, so
// they are a hard error rather than something the graph silently absorbs.
func ValidateWindows(windows []OverlayWindow) error {
	for i, w := range windows {
		if w.End <= w.Start {
			return fmt.Errorf("overlay window %d is empty: [%.3f, %.3f]", i, w.Start, w.End)
		}
		if w.Start < 0 {
			return fmt.Errorf("overlay window %d starts before zero: %.3f", i, w.Start)
		}
		if i > 0 && w.Start < windows[i-1].End {
			return fmt.Errorf("overlay window %d [%.3f, %.3f] overlaps window %d ending at %.3f",
				i, w.Start, w.End, i-1, windows[i-1].End)
		}
	}
	return nil
}

// OverlayChain builds the per-clip filter chain for overlay input i
// (ffmpeg input index i+1, the main clip being input 0): trim the clip to
// its window length, shift its presentation timestamps to the window start,
// scale to fit the target frame preserving aspect ratio, pad to the exact
// frame centered, and normalize the sample aspect ratio.
func OverlayChain(i int, w OverlayWindow, width, height int) string {
	return fmt.Sprintf(
		"[%d:v]trim=duration=%.3f,setpts=PTS-STARTPTS+%.3f/TB,"+
			"scale=%d:%d:force_original_aspect_ratio=decrease,"+
			"pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1[b%d]",
		i+1, w.Duration(), w.Start,
		width, height,
		width, height, i,
	)
}

// BuildOverlayGraph constructs the composite filter expression that lays
// every b-roll clip over the main video in sequence. Each overlay is
// centered and reverts to the base video once its own clip ends
// (eof_action=pass). The final video stream is labeled [vout]; audio is
// never touched by the graph.
func BuildOverlayGraph(windows []OverlayWindow, width, height int) (string, error) {
	if len(windows) == 0 {
		return "", fmt.Errorf("no overlay windows to compose")
	}
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("invalid target dimensions %dx%d", width, height)
	}
	if err := ValidateWindows(windows); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(windows)*2)
	for i, w := range windows {
		parts = append(parts, OverlayChain(i, w, width, height))
	}

	base := "[0:v]"
	for i := range windows {
		out := fmt.Sprintf("[v%d]", i)
		if i == len(windows)-1 {
			out = "[vout]"
		}
		parts = append(parts, fmt.Sprintf(
			"%s[b%d]overlay=(W-w)/2:(H-h)/2:eof_action=pass%s", base, i, out))
		base = out
	}

	return strings.Join(parts, ";"), nil
}
