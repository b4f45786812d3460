package announcement

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/listctl"
	"github.com/trezcool/darasa/core/user"
)

// Controller keeps the newest-first announcements of one course in sync with the service.
type Controller struct {
	svc      *Service
	actor    user.User
	courseID string
	list     *listctl.List[Announcement]
}

func NewController(svc *Service, actor user.User, courseID string, confirm listctl.Confirmer, logger core.Logger) *Controller {
	return &Controller{
		svc:      svc,
		actor:    actor,
		courseID: courseID,
		list:     listctl.New(listctl.NewestFirst, func(a Announcement) string { return a.ID }, confirm, logger),
	}
}

func (c *Controller) Load(ctx context.Context) error {
	return c.list.Load(ctx, func(ctx context.Context) ([]Announcement, error) {
		return c.svc.List(ctx, c.courseID)
	})
}

func (c *Controller) Create(ctx context.Context, na NewAnnouncement, file *attachment.File) (Announcement, error) {
	if na.CourseID == "" {
		na.CourseID = c.courseID
	}
	return c.list.Create(ctx, func(ctx context.Context) (Announcement, error) {
		return c.svc.Create(ctx, c.actor, na, file)
	}, "Announcement posted.")
}

func (c *Controller) Update(ctx context.Context, id string, ua UpdateAnnouncement, file *attachment.File) (Announcement, error) {
	return c.list.Update(ctx, id, func(ctx context.Context) (Announcement, error) {
		return c.svc.Update(ctx, c.actor, id, ua, file)
	}, "Announcement updated.")
}

// Delete asks for confirmation before deleting; it returns listctl.ErrCancelled when declined.
func (c *Controller) Delete(ctx context.Context, id string) error {
	prompt := "Delete this announcement?"
	if a, ok := c.list.Get(id); ok {
		prompt = "Delete announcement \"" + a.Title + "\"?"
	}
	return c.list.Delete(ctx, id, prompt, func(ctx context.Context) error {
		return c.svc.Delete(ctx, c.actor, id)
	}, "Announcement deleted.")
}

func (c *Controller) Items() []Announcement { return c.list.Items() }
func (c *Controller) Status() string        { return c.list.Status() }
