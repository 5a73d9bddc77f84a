package models

import "testing"

func TestStageString(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageNew, "new"},
		{StageClipsGenerated, "clips_generated"},
		{StageJoined, "joined"},
		{StageFinalized, "finalized"},
		{Stage(7), "stage(7)"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", int(tt.stage), got, tt.want)
		}
	}
}

func TestStageValid(t *testing.T) {
	for s := StageNew; s <= StageFinalized; s++ {
		if !s.Valid() {
			t.Errorf("stage %d should be valid", int(s))
		}
	}
	if Stage(-1).Valid() || Stage(4).Valid() {
		t.Error("out-of-range markers must be invalid")
	}
}

func TestBRollSegments(t *testing.T) {
	script := &Script{Segments: []Segment{
		{Role: RolePresenter, Content: "hook"},
		{Role: RoleProductBRoll, Content: "product shot"},
		{Role: RoleGenericBRoll, Content: "lifestyle"},
		{Role: RolePresenter, Content: "cta"},
	}}

	got := script.BRollSegments()
	want := []int{1, 2}
	if len(got) != len(want) {
		t.Fatalf("BRollSegments() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("BRollSegments()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestCurrentArtifactURL(t *testing.T) {
	script := &Script{RawVideoURL: "raw"}
	if got := script.CurrentArtifactURL(); got != "raw" {
		t.Errorf("got %q, want raw", got)
	}
	script.JoinedVideoURL = "joined"
	if got := script.CurrentArtifactURL(); got != "joined" {
		t.Errorf("got %q, want joined", got)
	}
	script.FinalVideoURL = "final"
	if got := script.CurrentArtifactURL(); got != "final" {
		t.Errorf("got %q, want final", got)
	}
}

func TestProductPrimaryImage(t *testing.T) {
	var p *Product
	if p.PrimaryImage() != "" {
		t.Error("nil product must have no primary image")
	}
	p = &Product{}
	if p.PrimaryImage() != "" {
		t.Error("product without images must have no primary image")
	}
	p.ImageURLs = []string{"https://example.com/a.jpg", "https://example.com/b.jpg"}
	if got := p.PrimaryImage(); got != "https://example.com/a.jpg" {
		t.Errorf("PrimaryImage() = %q", got)
	}
}
