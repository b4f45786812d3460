package contribution

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/listctl"
)

// Controller keeps the newest-first contributions of one week.
type Controller struct {
	svc  *Service
	week int
	list *listctl.List[Contribution]
}

func NewController(svc *Service, week int, confirm listctl.Confirmer, logger core.Logger) *Controller {
	return &Controller{
		svc:  svc,
		week: week,
		list: listctl.New(listctl.NewestFirst, func(c Contribution) string { return c.ID }, confirm, logger),
	}
}

func (c *Controller) Load(ctx context.Context) error {
	return c.list.Load(ctx, func(ctx context.Context) ([]Contribution, error) {
		return c.svc.List(ctx, c.week)
	})
}

func (c *Controller) Create(ctx context.Context, nc NewContribution, file *attachment.File) (Contribution, error) {
	if nc.Week == 0 {
		nc.Week = c.week
	}
	return c.list.Create(ctx, func(ctx context.Context) (Contribution, error) {
		return c.svc.Create(ctx, nc, file)
	}, "Contribution shared.")
}

// Delete asks for confirmation before deleting; it returns listctl.ErrCancelled when declined.
func (c *Controller) Delete(ctx context.Context, id string) error {
	return c.list.Delete(ctx, id, "Delete this contribution?", func(ctx context.Context) error {
		return c.svc.Delete(ctx, id)
	}, "Contribution deleted.")
}

func (c *Controller) Items() []Contribution { return c.list.Items() }
func (c *Controller) Status() string        { return c.list.Status() }
