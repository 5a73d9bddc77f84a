package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stage is the persisted progress marker for one ad generation. It only
// moves forward; a re-invocation skips every stage at or below it.
type Stage int

const (
	StageNew            Stage = 0 // script drafted, nothing rendered
	StageClipsGenerated Stage = 1 // avatar clip + every b-roll clip uploaded
	StageJoined         Stage = 2 // b-roll composited onto the avatar clip
	StageFinalized      Stage = 3 // captioned and stored as the final artifact
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageClipsGenerated:
		return "clips_generated"
	case StageJoined:
		return "joined"
	case StageFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) Valid() bool {
	return s >= StageNew && s <= StageFinalized
}

// Segment roles. Presenter segments are spoken to camera, the other two are
// illustrated with generated footage.
const (
	RolePresenter    = "presenter"
	RoleProductBRoll = "product-broll"
	RoleGenericBRoll = "generic-broll"
)

// Segment is one narrative beat of the ad script.
type Segment struct {
	Role            string   `bson:"role" json:"role"`
	Content         string   `bson:"content" json:"content"`
	VisualDirection string   `bson:"visual_direction,omitempty" json:"visual_direction,omitempty"`
	Start           *float64 `bson:"start,omitempty" json:"start,omitempty"`
	End             *float64 `bson:"end,omitempty" json:"end,omitempty"`
}

// IsBRoll reports whether the segment is illustrated by generated footage.
func (s Segment) IsBRoll() bool {
	return s.Role == RoleProductBRoll || s.Role == RoleGenericBRoll
}

// BRollClip is one generated overlay clip together with the segment text it
// illustrates and, after alignment, the time window it occupies on the
// main clip.
type BRollClip struct {
	SegmentIndex int     `bson:"segment_index" json:"segment_index"`
	SourceText   string  `bson:"source_text" json:"source_text"`
	Prompt       string  `bson:"prompt" json:"prompt"`
	ClipURL      string  `bson:"clip_url" json:"clip_url"`
	Start        float64 `bson:"start,omitempty" json:"start,omitempty"`
	End          float64 `bson:"end,omitempty" json:"end,omitempty"`
}

// Script is the unit of work for one generated ad.
type Script struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductURL  string             `bson:"product_url" json:"product_url"`
	PresenterID primitive.ObjectID `bson:"presenter_id" json:"presenter_id"`

	FullScript string    `bson:"full_script" json:"full_script"`
	Segments   []Segment `bson:"segments" json:"segments"`
	Research   string    `bson:"research,omitempty" json:"research,omitempty"`
	Product    *Product  `bson:"product,omitempty" json:"product,omitempty"`

	Status Stage `bson:"status" json:"status"`

	RawVideoURL       string      `bson:"raw_video_url,omitempty" json:"raw_video_url,omitempty"`
	BRollUsed         []BRollClip `bson:"b_roll_used,omitempty" json:"b_roll_used,omitempty"`
	JoinedVideoURL    string      `bson:"joined_video_url,omitempty" json:"joined_video_url,omitempty"`
	FinalVideoURL     string      `bson:"final_video_url,omitempty" json:"final_video_url,omitempty"`
	CaptionTemplateID string      `bson:"caption_template_id,omitempty" json:"caption_template_id,omitempty"`

	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	ErrorMessage string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
}

// BRollSegments returns the indexes of segments tagged as b-roll, in order.
func (s *Script) BRollSegments() []int {
	var idx []int
	for i, seg := range s.Segments {
		if seg.IsBRoll() {
			idx = append(idx, i)
		}
	}
	return idx
}

// CurrentArtifactURL returns the most-processed video the record has.
func (s *Script) CurrentArtifactURL() string {
	switch {
	case s.FinalVideoURL != "":
		return s.FinalVideoURL
	case s.JoinedVideoURL != "":
		return s.JoinedVideoURL
	default:
		return s.RawVideoURL
	}
}

// Presenter is a selectable talking-head identity. AvatarID and VoiceID
// reference the avatar rendering service; VoiceConversionID, when set,
// references a cloned voice the rendered audio is converted into.
type Presenter struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name              string             `bson:"name" json:"name"`
	Gender            string             `bson:"gender,omitempty" json:"gender,omitempty"`
	AvatarID          string             `bson:"avatar_id" json:"avatar_id"`
	VoiceID           string             `bson:"voice_id" json:"voice_id"`
	VoiceConversionID string             `bson:"voice_conversion_id,omitempty" json:"voice_conversion_id,omitempty"`
	PreviewURL        string             `bson:"preview_url,omitempty" json:"preview_url,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
}

// Product is the scraped product page summary the script is drafted from.
type Product struct {
	Name        string   `bson:"name" json:"name"`
	Description string   `bson:"description" json:"description"`
	Price       string   `bson:"price,omitempty" json:"price,omitempty"`
	ImageURLs   []string `bson:"image_urls,omitempty" json:"image_urls,omitempty"`
}

// PrimaryImage returns the first product image, or "" when none was scraped.
func (p *Product) PrimaryImage() string {
	if p == nil || len(p.ImageURLs) == 0 {
		return ""
	}
	return p.ImageURLs[0]
}

// Resolution of a probed video in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VideoDetails is the best-effort media metadata attached to a pipeline
// response. A nil *VideoDetails means probing failed and is not an error.
type VideoDetails struct {
	Duration   float64    `json:"duration"`
	FileFormat string     `json:"fileFormat"`
	Framerate  float64    `json:"framerate"`
	Resolution Resolution `json:"resolution"`
}

// TranscriptSegment is one time-coded span of the spoken transcript.
type TranscriptSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// AlignedWindow maps one b-roll segment onto the transcript span it
// corresponds to.
type AlignedWindow struct {
	SegmentIndex int     `json:"segment_index"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	SourceText   string  `json:"source_text"`
}
