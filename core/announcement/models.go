package announcement

import (
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

type Announcement struct {
	ID        string  `json:"id"`
	CourseID  string  `json:"course_id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Link      *string `json:"link"`
	LinkLabel *string `json:"link_label"`
	*attachment.Ref
	FileURL     string    `json:"file_url,omitempty"`
	ContentHTML string    `json:"content_html"`
	AuthorID    string    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewAnnouncement contains the fields of the announcement form. The optional attachment is passed
// separately.
type NewAnnouncement struct {
	CourseID  string  `json:"course_id" form:"course_id" validate:"max=100"`
	Title     string  `json:"title" form:"title" validate:"required,notblank,max=200"`
	Content   string  `json:"content" form:"content" validate:"required,notblank,max=20000"`
	Link      *string `json:"link" form:"link" validate:"omitempty,httpurl,max=2000"`
	LinkLabel *string `json:"link_label" form:"link_label" validate:"omitempty,max=100"`
}

func (na *NewAnnouncement) clean() {
	na.CourseID = core.CleanString(na.CourseID)
	na.Title = core.CleanString(na.Title)
	na.Content = core.CleanString(na.Content)
	na.Link = core.CleanStringPtr(na.Link)
	na.LinkLabel = core.CleanStringPtr(na.LinkLabel)
}

// UpdateAnnouncement replaces the editable fields. A new attachment replaces the current one;
// RemoveFile clears it; otherwise it is kept.
type UpdateAnnouncement struct {
	Title      string  `json:"title" form:"title" validate:"required,notblank,max=200"`
	Content    string  `json:"content" form:"content" validate:"required,notblank,max=20000"`
	Link       *string `json:"link" form:"link" validate:"omitempty,httpurl,max=2000"`
	LinkLabel  *string `json:"link_label" form:"link_label" validate:"omitempty,max=100"`
	RemoveFile bool    `json:"remove_file" form:"remove_file"`
}

func (ua *UpdateAnnouncement) clean() {
	ua.Title = core.CleanString(ua.Title)
	ua.Content = core.CleanString(ua.Content)
	ua.Link = core.CleanStringPtr(ua.Link)
	ua.LinkLabel = core.CleanStringPtr(ua.LinkLabel)
}

type NotifyRequest struct {
	AnnouncementID string `json:"announcement_id" validate:"required"`
	CourseID       string `json:"course_id"`
}

type NotifyResult struct {
	Success        bool   `json:"success"`
	RecipientCount int    `json:"recipient_count"`
	PreviewURL     string `json:"preview_url,omitempty"`
}
