package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shah-aman/ai-ugc-sub000/engine"
	"github.com/shah-aman/ai-ugc-sub000/models"
	"github.com/shah-aman/ai-ugc-sub000/store"
)

// fakeStore keeps scripts in memory and emulates the conditional stage
// update of the real store, including the conflict on a stale marker.
type fakeStore struct {
	mu         sync.Mutex
	scripts    map[primitive.ObjectID]*models.Script
	presenters map[primitive.ObjectID]*models.Presenter
	advances   int
	lastError  string

	// called at the top of AdvanceStage, before the marker check
	beforeAdvance func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		scripts:    make(map[primitive.ObjectID]*models.Script),
		presenters: make(map[primitive.ObjectID]*models.Presenter),
	}
}

func (s *fakeStore) GetScript(ctx context.Context, id primitive.ObjectID) (*models.Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	script, ok := s.scripts[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	copied := *script
	return &copied, nil
}

func (s *fakeStore) GetPresenter(ctx context.Context, id primitive.ObjectID) (*models.Presenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presenters[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	copied := *p
	return &copied, nil
}

func (s *fakeStore) AdvanceStage(ctx context.Context, id primitive.ObjectID, from, to models.Stage, set bson.M) error {
	if s.beforeAdvance != nil {
		s.beforeAdvance()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	script, ok := s.scripts[id]
	if !ok || script.Status != from {
		return store.ErrStageConflict
	}

	script.Status = to
	for key, value := range set {
		switch key {
		case "raw_video_url":
			script.RawVideoURL = value.(string)
		case "b_roll_used":
			script.BRollUsed = value.([]models.BRollClip)
		case "joined_video_url":
			script.JoinedVideoURL = value.(string)
		case "segments":
			script.Segments = value.([]models.Segment)
		case "final_video_url":
			script.FinalVideoURL = value.(string)
		case "caption_template_id":
			script.CaptionTemplateID = value.(string)
		case "completed_at":
			t := value.(time.Time)
			script.CompletedAt = &t
		}
	}
	s.advances++
	return nil
}

func (s *fakeStore) SetScriptError(ctx context.Context, id primitive.ObjectID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = message
}

func (s *fakeStore) status(id primitive.ObjectID) models.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scripts[id].Status
}

// fakeBlob serves any URL and records uploads under mem:// URLs.
type fakeBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: make(map[string][]byte)}
}

func (b *fakeBlob) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	url := fmt.Sprintf("mem://%s/%s", bucket, key)
	b.objects[url] = data
	b.uploads++
	return url, nil
}

func (b *fakeBlob) Download(ctx context.Context, url string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if data, ok := b.objects[url]; ok {
		return data, nil
	}
	// vendor output URLs are not in the store; synthesize stable bytes
	return []byte("video:" + url), nil
}

type fakeAvatar struct {
	mu      sync.Mutex
	submits int
	err     error
}

func (a *fakeAvatar) Submit(ctx context.Context, scriptText, avatarID, voiceID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.submits++
	return "job-1", nil
}

func (a *fakeAvatar) WaitForVideo(ctx context.Context, videoID string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "https://vendor.example/main.mp4", nil
}

type fakeBRoll struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (b *fakeBRoll) Generate(ctx context.Context, imageURL, prompt string, duration float64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.calls++
	return fmt.Sprintf("https://vendor.example/broll-%d.mp4", b.calls), nil
}

type fakeCaptions struct {
	mu      sync.Mutex
	submits int
}

func (c *fakeCaptions) Submit(ctx context.Context, videoURL, templateID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits++
	return "op-1", nil
}

func (c *fakeCaptions) WaitForDownload(ctx context.Context, operationID string) (string, error) {
	return "https://vendor.example/captioned.mp4", nil
}

type fakeVoice struct {
	mu       sync.Mutex
	converts int
}

func (v *fakeVoice) Convert(ctx context.Context, voiceID string, audio []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.converts++
	return []byte("converted"), nil
}

// fakeAligner returns one window per b-roll index, spaced apart so the
// join gets non-overlapping windows in segment order.
type fakeAligner struct{}

func (fakeAligner) Transcribe(ctx context.Context, audioPath string) ([]models.TranscriptSegment, error) {
	return []models.TranscriptSegment{
		{Text: "hello", Start: 0, End: 2},
		{Text: "world", Start: 2, End: 4},
	}, nil
}

func (fakeAligner) AlignSegments(ctx context.Context, transcript []models.TranscriptSegment, segments []models.Segment, brollIndexes []int) ([]models.AlignedWindow, error) {
	windows := make([]models.AlignedWindow, 0, len(brollIndexes))
	for i, idx := range brollIndexes {
		windows = append(windows, models.AlignedWindow{
			SegmentIndex: idx,
			Start:        float64(i*3) + 1,
			End:          float64(i*3) + 3,
			SourceText:   segments[idx].Content,
		})
	}
	return windows, nil
}

// fakeMedia writes placeholder output files so subsequent reads succeed.
type fakeMedia struct {
	joinErr   error
	joinCalls int
}

func (m *fakeMedia) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	return os.WriteFile(audioPath, []byte("audio"), 0644)
}

func (m *fakeMedia) ReplaceAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return os.WriteFile(outputPath, []byte("revoiced"), 0644)
}

func (m *fakeMedia) Join(ctx context.Context, mainPath string, overlayPaths []string, windows []engine.OverlayWindow, width, height int, outputPath string) error {
	m.joinCalls++
	if m.joinErr != nil {
		return m.joinErr
	}
	return os.WriteFile(outputPath, []byte("joined"), 0644)
}

func (m *fakeMedia) Probe(ctx context.Context, videoURL string) *models.VideoDetails {
	return &models.VideoDetails{
		Duration:   30.5,
		FileFormat: "mp4",
		Framerate:  30,
		Resolution: models.Resolution{Width: 720, Height: 1280},
	}
}

type fixture struct {
	store    *fakeStore
	blob     *fakeBlob
	avatar   *fakeAvatar
	broll    *fakeBRoll
	captions *fakeCaptions
	voice    *fakeVoice
	media    *fakeMedia
	orch     *Orchestrator

	scriptID    primitive.ObjectID
	presenterID primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newFakeStore(),
		blob:     newFakeBlob(),
		avatar:   &fakeAvatar{},
		broll:    &fakeBRoll{},
		captions: &fakeCaptions{},
		voice:    &fakeVoice{},
		media:    &fakeMedia{},
	}
	f.orch = &Orchestrator{
		Store:    f.store,
		Blob:     f.blob,
		Avatar:   f.avatar,
		BRoll:    f.broll,
		Captions: f.captions,
		Voice:    f.voice,
		AI:       fakeAligner{},
		Media:    f.media,
		Buckets: Buckets{
			Raw:       "raw-clips",
			BRoll:     "b-roll",
			Composite: "composite",
			Final:     "final",
		},
		PlaceholderImageURL: "https://cdn.example/placeholder.png",
	}

	f.presenterID = primitive.NewObjectID()
	f.store.presenters[f.presenterID] = &models.Presenter{
		ID:       f.presenterID,
		Name:     "Maya",
		AvatarID: "avatar-1",
		VoiceID:  "voice-1",
	}

	f.scriptID = primitive.NewObjectID()
	f.store.scripts[f.scriptID] = &models.Script{
		ID:          f.scriptID,
		ProductURL:  "https://shop.example/widget",
		PresenterID: f.presenterID,
		FullScript:  "You will not believe this widget.",
		Segments: []models.Segment{
			{Role: models.RolePresenter, Content: "You will not believe this widget."},
			{Role: models.RoleProductBRoll, Content: "Close-up of the widget", VisualDirection: "slow pan over the product"},
			{Role: models.RolePresenter, Content: "It changed my mornings."},
			{Role: models.RoleGenericBRoll, Content: "A calm morning routine"},
		},
		Product: &models.Product{
			Name:      "Widget",
			ImageURLs: []string{"https://shop.example/widget.jpg"},
		},
		Status: models.StageNew,
	}
	return f
}

func TestRunFullPipeline(t *testing.T) {
	f := newFixture(t)

	result, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.VideoURL == "" {
		t.Error("result has empty video URL")
	}
	if result.Details == nil || result.Details.Resolution.Width != 720 {
		t.Errorf("result details = %+v, want probed metadata", result.Details)
	}

	stored := f.store.scripts[f.scriptID]
	if stored.Status != models.StageFinalized {
		t.Errorf("stored stage = %s, want %s", stored.Status, models.StageFinalized)
	}
	if stored.FinalVideoURL != result.VideoURL {
		t.Errorf("final URL mismatch: stored %q, returned %q", stored.FinalVideoURL, result.VideoURL)
	}
	if stored.CaptionTemplateID != "tmpl-bold" {
		t.Errorf("caption template = %q, want tmpl-bold", stored.CaptionTemplateID)
	}
	if stored.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	if len(stored.BRollUsed) != 2 {
		t.Fatalf("b-roll used = %d clips, want 2", len(stored.BRollUsed))
	}
	for _, clip := range stored.BRollUsed {
		if clip.End <= clip.Start {
			t.Errorf("clip for segment %d has window [%.2f, %.2f]", clip.SegmentIndex, clip.Start, clip.End)
		}
		if !strings.HasPrefix(clip.ClipURL, "mem://b-roll/") {
			t.Errorf("clip URL %q not persisted to the b-roll bucket", clip.ClipURL)
		}
	}

	if f.avatar.submits != 1 {
		t.Errorf("avatar submits = %d, want 1", f.avatar.submits)
	}
	if f.broll.calls != 2 {
		t.Errorf("b-roll generations = %d, want 2", f.broll.calls)
	}
	if f.captions.submits != 1 {
		t.Errorf("caption submits = %d, want 1", f.captions.submits)
	}
	if f.voice.converts != 0 {
		t.Errorf("voice conversions = %d, want 0 for a presenter without a cloned voice", f.voice.converts)
	}
}

func TestRunIdempotentWhenFinalized(t *testing.T) {
	f := newFixture(t)
	f.store.scripts[f.scriptID].Status = models.StageFinalized
	f.store.scripts[f.scriptID].FinalVideoURL = "mem://final/done.mp4"

	result, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.VideoURL != "mem://final/done.mp4" {
		t.Errorf("video URL = %q, want the persisted final URL", result.VideoURL)
	}

	if f.avatar.submits != 0 || f.broll.calls != 0 || f.captions.submits != 0 {
		t.Errorf("finalized script re-ran generation: avatar=%d broll=%d captions=%d",
			f.avatar.submits, f.broll.calls, f.captions.submits)
	}
	if f.store.advances != 0 {
		t.Errorf("stage advanced %d times on a finalized script", f.store.advances)
	}
}

func TestRunResumesAfterJoinFailure(t *testing.T) {
	f := newFixture(t)
	f.media.joinErr = errors.New("filter graph rejected")

	_, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
	if err == nil {
		t.Fatal("expected join failure")
	}
	if got := f.store.status(f.scriptID); got != models.StageClipsGenerated {
		t.Fatalf("stage after failed join = %s, want %s", got, models.StageClipsGenerated)
	}
	if f.store.lastError == "" {
		t.Error("failure was not recorded on the script")
	}

	// retry resumes at the join; nothing upstream is regenerated
	f.media.joinErr = nil
	result, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.VideoURL == "" {
		t.Error("retry returned empty video URL")
	}
	if got := f.store.status(f.scriptID); got != models.StageFinalized {
		t.Errorf("stage after retry = %s, want %s", got, models.StageFinalized)
	}
	if f.avatar.submits != 1 {
		t.Errorf("avatar submits = %d after retry, want 1", f.avatar.submits)
	}
	if f.broll.calls != 2 {
		t.Errorf("b-roll generations = %d after retry, want 2", f.broll.calls)
	}
}

func TestRunBRollFailureFailsStage(t *testing.T) {
	f := newFixture(t)
	f.broll.err = errors.New("provider quota exceeded")

	_, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
	if err == nil {
		t.Fatal("expected stage failure")
	}
	if !strings.Contains(err.Error(), "b-roll") {
		t.Errorf("error %q does not identify the b-roll step", err)
	}
	if got := f.store.status(f.scriptID); got != models.StageNew {
		t.Errorf("stage after failure = %s, want %s", got, models.StageNew)
	}
	if f.store.advances != 0 {
		t.Errorf("stage advanced %d times despite a failed clip", f.store.advances)
	}
}

func TestRunClipCountMismatch(t *testing.T) {
	f := newFixture(t)
	script := f.store.scripts[f.scriptID]
	script.Status = models.StageClipsGenerated
	script.RawVideoURL = "mem://raw-clips/main.mp4"
	script.BRollUsed = []models.BRollClip{
		{SegmentIndex: 1, ClipURL: "mem://b-roll/only.mp4"},
	}

	_, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	if !strings.Contains(err.Error(), "mismatch") {
		t.Errorf("error %q does not describe the count mismatch", err)
	}
	if got := f.store.status(f.scriptID); got != models.StageClipsGenerated {
		t.Errorf("stage after mismatch = %s, want unchanged %s", got, models.StageClipsGenerated)
	}
}

func TestRunScriptNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Run(context.Background(), primitive.NewObjectID(), "tmpl-bold")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}

func TestRunPreconditions(t *testing.T) {
	t.Run("empty narrative", func(t *testing.T) {
		f := newFixture(t)
		f.store.scripts[f.scriptID].FullScript = ""

		_, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
		var pre *PreconditionError
		if !errors.As(err, &pre) {
			t.Fatalf("error = %v, want PreconditionError", err)
		}
	})

	t.Run("no segments", func(t *testing.T) {
		f := newFixture(t)
		f.store.scripts[f.scriptID].Segments = nil

		_, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
		var pre *PreconditionError
		if !errors.As(err, &pre) {
			t.Fatalf("error = %v, want PreconditionError", err)
		}
	})

	t.Run("presenter missing", func(t *testing.T) {
		f := newFixture(t)
		f.store.scripts[f.scriptID].PresenterID = primitive.NewObjectID()

		_, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("error = %v, want NotFoundError", err)
		}
	})

	t.Run("presenter without voice", func(t *testing.T) {
		f := newFixture(t)
		f.store.presenters[f.presenterID].VoiceID = ""

		_, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
		var pre *PreconditionError
		if !errors.As(err, &pre) {
			t.Fatalf("error = %v, want PreconditionError", err)
		}
	})
}

func TestRunStageConflict(t *testing.T) {
	f := newFixture(t)

	// another worker finishes the first stage between our read and write
	f.store.beforeAdvance = func() {
		f.store.mu.Lock()
		if f.store.scripts[f.scriptID].Status == models.StageNew {
			f.store.scripts[f.scriptID].Status = models.StageClipsGenerated
		}
		f.store.mu.Unlock()
	}

	_, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
	if !errors.Is(err, store.ErrStageConflict) {
		t.Fatalf("error = %v, want ErrStageConflict", err)
	}
}

func TestRunVoiceConversion(t *testing.T) {
	f := newFixture(t)
	f.store.presenters[f.presenterID].VoiceConversionID = "clone-7"

	_, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if f.voice.converts != 1 {
		t.Errorf("voice conversions = %d, want 1", f.voice.converts)
	}

	stored := f.store.scripts[f.scriptID]
	if !strings.HasPrefix(stored.RawVideoURL, "mem://raw-clips/") {
		t.Errorf("raw video URL %q, want the revoiced clip in the raw bucket", stored.RawVideoURL)
	}
}

func TestRunSetsSegmentWindows(t *testing.T) {
	f := newFixture(t)

	if _, err := f.orch.Run(context.Background(), f.scriptID, "tmpl-bold"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stored := f.store.scripts[f.scriptID]
	for _, i := range []int{1, 3} {
		seg := stored.Segments[i]
		if seg.Start == nil || seg.End == nil {
			t.Fatalf("segment %d has no aligned window", i)
		}
		if *seg.End <= *seg.Start {
			t.Errorf("segment %d window [%.2f, %.2f]", i, *seg.Start, *seg.End)
		}
	}
	for _, i := range []int{0, 2} {
		if stored.Segments[i].Start != nil {
			t.Errorf("presenter segment %d got an overlay window", i)
		}
	}
}
