package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/shah-aman/ai-ugc-sub000/engine"
	"github.com/shah-aman/ai-ugc-sub000/models"
)

// join runs stage 1→2: align every b-roll segment to the spoken audio of
// the main clip, composite the clips onto it at their windows, remux the
// original audio and persist the result.
func (o *Orchestrator) join(ctx context.Context, script *models.Script) error {
	brollIndexes := script.BRollSegments()
	if len(script.BRollUsed) != len(brollIndexes) {
		return fmt.Errorf("b-roll count mismatch: %d clips generated for %d tagged segments",
			len(script.BRollUsed), len(brollIndexes))
	}

	tempDir, err := os.MkdirTemp("", "join-"+script.ID.Hex())
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	mainData, err := o.Blob.Download(ctx, script.RawVideoURL)
	if err != nil {
		return fmt.Errorf("downloading main clip: %w", err)
	}
	mainPath := filepath.Join(tempDir, "main.mp4")
	if err := os.WriteFile(mainPath, mainData, 0644); err != nil {
		return fmt.Errorf("writing main clip: %w", err)
	}

	windows, err := o.alignToTranscript(ctx, script, mainPath, tempDir, brollIndexes)
	if err != nil {
		return err
	}

	// Lay clips down in window order; alignment already guarantees one
	// window per b-roll segment.
	clipByIndex := make(map[int]models.BRollClip, len(script.BRollUsed))
	for _, clip := range script.BRollUsed {
		clipByIndex[clip.SegmentIndex] = clip
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })

	overlayPaths := make([]string, 0, len(windows))
	overlayWindows := make([]engine.OverlayWindow, 0, len(windows))
	updatedClips := make([]models.BRollClip, 0, len(windows))

	for i, w := range windows {
		clip, ok := clipByIndex[w.SegmentIndex]
		if !ok {
			return fmt.Errorf("aligned segment %d has no generated clip", w.SegmentIndex)
		}

		clipData, err := o.Blob.Download(ctx, clip.ClipURL)
		if err != nil {
			return fmt.Errorf("downloading b-roll clip %d: %w", w.SegmentIndex, err)
		}
		clipPath := filepath.Join(tempDir, fmt.Sprintf("overlay_%d.mp4", i))
		if err := os.WriteFile(clipPath, clipData, 0644); err != nil {
			return fmt.Errorf("writing b-roll clip %d: %w", w.SegmentIndex, err)
		}

		overlayPaths = append(overlayPaths, clipPath)
		overlayWindows = append(overlayWindows, engine.OverlayWindow{Start: w.Start, End: w.End})

		clip.Start = w.Start
		clip.End = w.End
		updatedClips = append(updatedClips, clip)

		start, end := w.Start, w.End
		script.Segments[w.SegmentIndex].Start = &start
		script.Segments[w.SegmentIndex].End = &end
	}

	joinedPath := filepath.Join(tempDir, "joined.mp4")
	if err := o.Media.Join(ctx, mainPath, overlayPaths, overlayWindows, targetWidth, targetHeight, joinedPath); err != nil {
		return err
	}

	joined, err := os.ReadFile(joinedPath)
	if err != nil {
		return fmt.Errorf("reading joined video: %w", err)
	}
	key := fmt.Sprintf("%s/joined-%s.mp4", script.ID.Hex(), uuid.New().String()[:8])
	joinedURL, err := o.Blob.Upload(ctx, o.Buckets.Composite, key, joined, "video/mp4")
	if err != nil {
		return fmt.Errorf("persisting joined video: %w", err)
	}

	err = o.Store.AdvanceStage(ctx, script.ID, models.StageClipsGenerated, models.StageJoined, bson.M{
		"joined_video_url": joinedURL,
		"b_roll_used":      updatedClips,
		"segments":         script.Segments,
	})
	if err != nil {
		return fmt.Errorf("advancing stage marker: %w", err)
	}

	script.JoinedVideoURL = joinedURL
	script.BRollUsed = updatedClips
	script.Status = models.StageJoined
	return nil
}

// alignToTranscript extracts the main clip's audio, transcribes it with
// word-level timing and asks the completion model to map each b-roll
// segment onto its transcript span. Alignment is all-or-nothing: a missing
// or malformed window fails the whole join stage.
func (o *Orchestrator) alignToTranscript(ctx context.Context, script *models.Script, mainPath, tempDir string, brollIndexes []int) ([]models.AlignedWindow, error) {
	audioPath := filepath.Join(tempDir, "audio.wav")
	if err := o.Media.ExtractAudio(ctx, mainPath, audioPath); err != nil {
		return nil, fmt.Errorf("extracting audio: %w", err)
	}

	transcript, err := o.AI.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("transcribing audio: %w", err)
	}

	windows, err := o.AI.AlignSegments(ctx, transcript, script.Segments, brollIndexes)
	if err != nil {
		return nil, fmt.Errorf("aligning segments: %w", err)
	}
	return windows, nil
}
