package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shah-aman/ai-ugc-sub000/engine"
	"github.com/shah-aman/ai-ugc-sub000/models"
	"github.com/shah-aman/ai-ugc-sub000/store"
)

// Seconds of footage requested per generated b-roll clip. Alignment trims
// each clip to its spoken window, so clips only need to be long enough.
const brollClipSeconds = 5.0

// Output frame of the composed ad.
const (
	targetWidth  = 720
	targetHeight = 1280
)

// ScriptStore is the slice of the persistence layer the pipeline uses.
type ScriptStore interface {
	GetScript(ctx context.Context, id primitive.ObjectID) (*models.Script, error)
	GetPresenter(ctx context.Context, id primitive.ObjectID) (*models.Presenter, error)
	AdvanceStage(ctx context.Context, id primitive.ObjectID, from, to models.Stage, set bson.M) error
	SetScriptError(ctx context.Context, id primitive.ObjectID, message string)
}

// Blob is the artifact store gateway.
type Blob interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// AvatarService renders the talking-head main clip.
type AvatarService interface {
	Submit(ctx context.Context, scriptText, avatarID, voiceID string) (string, error)
	WaitForVideo(ctx context.Context, videoID string) (string, error)
}

// BRollService turns a still image plus a prompt into a short clip.
type BRollService interface {
	Generate(ctx context.Context, imageURL, prompt string, duration float64) (string, error)
}

// CaptionService burns captions into a finished video.
type CaptionService interface {
	Submit(ctx context.Context, videoURL, templateID string) (string, error)
	WaitForDownload(ctx context.Context, operationID string) (string, error)
}

// VoiceService converts rendered speech into a cloned presenter voice.
type VoiceService interface {
	Convert(ctx context.Context, voiceID string, audio []byte) ([]byte, error)
}

// Aligner produces time-coded transcript segments and maps b-roll segments
// onto them.
type Aligner interface {
	Transcribe(ctx context.Context, audioPath string) ([]models.TranscriptSegment, error)
	AlignSegments(ctx context.Context, transcript []models.TranscriptSegment, segments []models.Segment, brollIndexes []int) ([]models.AlignedWindow, error)
}

// MediaEngine is the narrow interface over the local media toolchain so
// tests can run the orchestrator without a real binary.
type MediaEngine interface {
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	ReplaceAudio(ctx context.Context, videoPath, audioPath, outputPath string) error
	Join(ctx context.Context, mainPath string, overlayPaths []string, windows []engine.OverlayWindow, width, height int, outputPath string) error
	Probe(ctx context.Context, videoURL string) *models.VideoDetails
}

// Buckets names the blob store buckets each stage writes into.
type Buckets struct {
	Raw       string
	BRoll     string
	Composite string
	Final     string
}

// Orchestrator drives a script record through the generation stages,
// persisting the stage marker after each one so a re-invocation resumes
// instead of redoing finished work.
type Orchestrator struct {
	Store    ScriptStore
	Blob     Blob
	Avatar   AvatarService
	BRoll    BRollService
	Captions CaptionService
	Voice    VoiceService
	AI       Aligner
	Media    MediaEngine

	Buckets             Buckets
	PlaceholderImageURL string
}

// Result is the success payload of a pipeline run.
type Result struct {
	VideoURL string
	Details  *models.VideoDetails
}

// Run executes every stage the record has not completed yet and returns the
// final artifact URL with best-effort media metadata. Any stage failure
// aborts the run; the persisted marker makes the next invocation resume.
func (o *Orchestrator) Run(ctx context.Context, scriptID primitive.ObjectID, captionTemplateID string) (*Result, error) {
	script, err := o.Store.GetScript(ctx, scriptID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, notFoundf("script %s not found", scriptID.Hex())
		}
		return nil, fmt.Errorf("loading script: %w", err)
	}

	presenter, err := o.checkPreconditions(ctx, script)
	if err != nil {
		return nil, err
	}

	for script.Status < models.StageFinalized {
		stage := script.Status
		log.Printf("Script %s: running stage %s", script.ID.Hex(), stage)

		switch stage {
		case models.StageNew:
			err = o.generateClips(ctx, script, presenter)
		case models.StageClipsGenerated:
			err = o.join(ctx, script)
		case models.StageJoined:
			err = o.finalize(ctx, script, captionTemplateID)
		default:
			err = fmt.Errorf("script %s has invalid stage marker %d", script.ID.Hex(), int(stage))
		}
		if err != nil {
			o.Store.SetScriptError(ctx, script.ID, err.Error())
			return nil, fmt.Errorf("stage %s: %w", stage, err)
		}
		log.Printf("✓ Script %s: stage %s complete", script.ID.Hex(), script.Status)
	}

	finalURL := script.CurrentArtifactURL()
	return &Result{
		VideoURL: finalURL,
		Details:  o.Media.Probe(ctx, finalURL),
	}, nil
}

// checkPreconditions validates the record before any stage runs. Violations
// are client errors and are never retried.
func (o *Orchestrator) checkPreconditions(ctx context.Context, script *models.Script) (*models.Presenter, error) {
	if script.FullScript == "" {
		return nil, preconditionf("script %s has no narrative text", script.ID.Hex())
	}
	if len(script.Segments) == 0 {
		return nil, preconditionf("script %s has no structured segments", script.ID.Hex())
	}

	presenter, err := o.Store.GetPresenter(ctx, script.PresenterID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, notFoundf("presenter %s not found", script.PresenterID.Hex())
		}
		return nil, fmt.Errorf("loading presenter: %w", err)
	}
	if presenter.AvatarID == "" || presenter.VoiceID == "" {
		return nil, preconditionf("presenter %s is missing an avatar or voice reference", presenter.ID.Hex())
	}
	return presenter, nil
}

// generateClips runs stage 0→1: render the main talking-head clip and, in
// parallel, one b-roll clip per non-presenter segment. Any failure fails
// the stage; nothing is silently dropped. Artifacts and the stage marker
// are written in a single conditional update.
func (o *Orchestrator) generateClips(ctx context.Context, script *models.Script, presenter *models.Presenter) error {
	brollIndexes := script.BRollSegments()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		mainURL string
		clips   = make([]*models.BRollClip, len(brollIndexes))
	)
	errCh := make(chan error, len(brollIndexes)+1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		url, err := o.generateMainClip(ctx, script, presenter)
		if err != nil {
			errCh <- fmt.Errorf("main clip: %w", err)
			return
		}
		mu.Lock()
		mainURL = url
		mu.Unlock()
	}()

	for slot, segIndex := range brollIndexes {
		wg.Add(1)
		go func(slot, segIndex int) {
			defer wg.Done()
			clip, err := o.generateBRollClip(ctx, script, segIndex)
			if err != nil {
				errCh <- fmt.Errorf("b-roll for segment %d: %w", segIndex, err)
				return
			}
			mu.Lock()
			clips[slot] = clip
			mu.Unlock()
		}(slot, segIndex)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}

	brollUsed := make([]models.BRollClip, 0, len(clips))
	for _, clip := range clips {
		brollUsed = append(brollUsed, *clip)
	}

	err := o.Store.AdvanceStage(ctx, script.ID, models.StageNew, models.StageClipsGenerated, bson.M{
		"raw_video_url": mainURL,
		"b_roll_used":   brollUsed,
	})
	if err != nil {
		return fmt.Errorf("advancing stage marker: %w", err)
	}

	script.RawVideoURL = mainURL
	script.BRollUsed = brollUsed
	script.Status = models.StageClipsGenerated
	return nil
}

// generateMainClip renders the avatar video and, when the presenter has a
// cloned voice, converts the rendered speech into it.
func (o *Orchestrator) generateMainClip(ctx context.Context, script *models.Script, presenter *models.Presenter) (string, error) {
	jobID, err := o.Avatar.Submit(ctx, script.FullScript, presenter.AvatarID, presenter.VoiceID)
	if err != nil {
		return "", err
	}

	videoURL, err := o.Avatar.WaitForVideo(ctx, jobID)
	if err != nil {
		return "", err
	}

	if presenter.VoiceConversionID == "" {
		return videoURL, nil
	}
	return o.convertVoice(ctx, script, presenter, videoURL)
}

// convertVoice re-voices the rendered clip with the presenter's cloned
// voice and persists the result to the blob store.
func (o *Orchestrator) convertVoice(ctx context.Context, script *models.Script, presenter *models.Presenter, videoURL string) (string, error) {
	tempDir, err := os.MkdirTemp("", "voice-"+script.ID.Hex())
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	videoData, err := o.Blob.Download(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("downloading rendered clip: %w", err)
	}
	videoPath := filepath.Join(tempDir, "main.mp4")
	if err := os.WriteFile(videoPath, videoData, 0644); err != nil {
		return "", fmt.Errorf("writing clip to disk: %w", err)
	}

	audioPath := filepath.Join(tempDir, "speech.wav")
	if err := o.Media.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return "", fmt.Errorf("extracting audio: %w", err)
	}
	audioData, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("reading extracted audio: %w", err)
	}

	converted, err := o.Voice.Convert(ctx, presenter.VoiceConversionID, audioData)
	if err != nil {
		return "", fmt.Errorf("converting voice: %w", err)
	}
	convertedPath := filepath.Join(tempDir, "converted.mp3")
	if err := os.WriteFile(convertedPath, converted, 0644); err != nil {
		return "", fmt.Errorf("writing converted audio: %w", err)
	}

	revoicedPath := filepath.Join(tempDir, "revoiced.mp4")
	if err := o.Media.ReplaceAudio(ctx, videoPath, convertedPath, revoicedPath); err != nil {
		return "", fmt.Errorf("remuxing converted audio: %w", err)
	}
	revoiced, err := os.ReadFile(revoicedPath)
	if err != nil {
		return "", fmt.Errorf("reading revoiced clip: %w", err)
	}

	key := fmt.Sprintf("%s/raw-%s.mp4", script.ID.Hex(), uuid.New().String()[:8])
	return o.Blob.Upload(ctx, o.Buckets.Raw, key, revoiced, "video/mp4")
}

// generateBRollClip produces one overlay clip for a b-roll segment and
// persists it to the blob store before the stage marker advances.
func (o *Orchestrator) generateBRollClip(ctx context.Context, script *models.Script, segIndex int) (*models.BRollClip, error) {
	segment := script.Segments[segIndex]

	imageURL := o.PlaceholderImageURL
	if segment.Role == models.RoleProductBRoll {
		if url := script.Product.PrimaryImage(); url != "" {
			imageURL = url
		}
	}
	if imageURL == "" {
		return nil, fmt.Errorf("no source image for %s segment", segment.Role)
	}

	prompt := segment.VisualDirection
	if prompt == "" {
		prompt = segment.Content
	}

	clipURL, err := o.BRoll.Generate(ctx, imageURL, prompt, brollClipSeconds)
	if err != nil {
		return nil, err
	}

	clipData, err := o.Blob.Download(ctx, clipURL)
	if err != nil {
		return nil, fmt.Errorf("downloading generated clip: %w", err)
	}

	key := fmt.Sprintf("%s/broll-%d-%s.mp4", script.ID.Hex(), segIndex, uuid.New().String()[:8])
	storedURL, err := o.Blob.Upload(ctx, o.Buckets.BRoll, key, clipData, "video/mp4")
	if err != nil {
		return nil, fmt.Errorf("persisting clip: %w", err)
	}

	return &models.BRollClip{
		SegmentIndex: segIndex,
		SourceText:   segment.Content,
		Prompt:       prompt,
		ClipURL:      storedURL,
	}, nil
}

// finalize runs stage 2→3: burn captions into the composite, persist the
// download and advance the marker.
func (o *Orchestrator) finalize(ctx context.Context, script *models.Script, captionTemplateID string) error {
	operationID, err := o.Captions.Submit(ctx, script.JoinedVideoURL, captionTemplateID)
	if err != nil {
		return fmt.Errorf("submitting captions job: %w", err)
	}

	downloadURL, err := o.Captions.WaitForDownload(ctx, operationID)
	if err != nil {
		return err
	}

	captioned, err := o.Blob.Download(ctx, downloadURL)
	if err != nil {
		return fmt.Errorf("downloading captioned video: %w", err)
	}

	key := fmt.Sprintf("%s/final-%s.mp4", script.ID.Hex(), uuid.New().String()[:8])
	finalURL, err := o.Blob.Upload(ctx, o.Buckets.Final, key, captioned, "video/mp4")
	if err != nil {
		return fmt.Errorf("persisting final video: %w", err)
	}

	now := time.Now()
	err = o.Store.AdvanceStage(ctx, script.ID, models.StageJoined, models.StageFinalized, bson.M{
		"final_video_url":     finalURL,
		"caption_template_id": captionTemplateID,
		"completed_at":        now,
	})
	if err != nil {
		return fmt.Errorf("advancing stage marker: %w", err)
	}

	script.FinalVideoURL = finalURL
	script.CaptionTemplateID = captionTemplateID
	script.CompletedAt = &now
	script.Status = models.StageFinalized
	return nil
}
