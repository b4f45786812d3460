package contribution

import (
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaText  MediaType = "text"
)

// Contribution is a student's weekly post: an image, a video or a text.
type Contribution struct {
	ID              string    `json:"id"`
	Week            int       `json:"week"`
	ContributorName string    `json:"contributor_name"`
	MediaType       MediaType `json:"media_type"`
	Caption         string    `json:"caption"`
	*attachment.Ref
	FileURL   string    `json:"file_url,omitempty"`
	FileSize  int64     `json:"file_size"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewContribution struct {
	Week            int       `json:"week" form:"week" validate:"required,min=1,max=53"`
	ContributorName string    `json:"contributor_name" form:"contributor_name" validate:"required,notblank,max=100"`
	MediaType       MediaType `json:"media_type" form:"media_type" validate:"required,oneof=image video text"`
	Caption         string    `json:"caption" form:"caption" validate:"max=2000"`
}

func (nc *NewContribution) clean() {
	nc.ContributorName = core.CleanString(nc.ContributorName)
	nc.MediaType = MediaType(core.CleanString(string(nc.MediaType), true /* lower */))
	nc.Caption = core.CleanString(nc.Caption)
}
