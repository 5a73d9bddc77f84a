package services

import (
	"strings"
	"testing"

	"github.com/shah-aman/ai-ugc-sub000/models"
)

func TestValidateAlignment(t *testing.T) {
	tests := []struct {
		name         string
		windows      []models.AlignedWindow
		brollIndexes []int
		wantErr      string
	}{
		{
			name: "valid",
			windows: []models.AlignedWindow{
				{SegmentIndex: 1, Start: 2.0, End: 4.5},
				{SegmentIndex: 3, Start: 8.0, End: 11.0},
			},
			brollIndexes: []int{1, 3},
		},
		{
			name: "single window",
			windows: []models.AlignedWindow{
				{SegmentIndex: 2, Start: 0.5, End: 3.0},
			},
			brollIndexes: []int{2},
		},
		{
			name: "missing window",
			windows: []models.AlignedWindow{
				{SegmentIndex: 1, Start: 2.0, End: 4.5},
			},
			brollIndexes: []int{1, 3},
			wantErr:      "1 windows for 2",
		},
		{
			name: "extra window",
			windows: []models.AlignedWindow{
				{SegmentIndex: 1, Start: 2.0, End: 4.5},
				{SegmentIndex: 3, Start: 8.0, End: 11.0},
			},
			brollIndexes: []int{1},
			wantErr:      "2 windows for 1",
		},
		{
			name: "unknown segment",
			windows: []models.AlignedWindow{
				{SegmentIndex: 0, Start: 2.0, End: 4.5},
			},
			brollIndexes: []int{1},
			wantErr:      "not a b-roll segment",
		},
		{
			name: "duplicate segment",
			windows: []models.AlignedWindow{
				{SegmentIndex: 1, Start: 2.0, End: 4.5},
				{SegmentIndex: 1, Start: 8.0, End: 11.0},
			},
			brollIndexes: []int{1, 3},
			wantErr:      "aligned twice",
		},
		{
			name: "zero duration",
			windows: []models.AlignedWindow{
				{SegmentIndex: 1, Start: 2.0, End: 2.0},
			},
			brollIndexes: []int{1},
			wantErr:      "non-positive duration",
		},
		{
			name: "end before start",
			windows: []models.AlignedWindow{
				{SegmentIndex: 1, Start: 5.0, End: 2.0},
			},
			brollIndexes: []int{1},
			wantErr:      "non-positive duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAlignment(tt.windows, tt.brollIndexes)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestStripJSONFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		if got := stripJSONFences(tt.in); got != tt.want {
			t.Errorf("stripJSONFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
