package contribution

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

var (
	errFileRequired    = errors.New("image and video contributions need a file")
	errCaptionRequired = errors.New("text contributions need a caption")
)

type (
	Repository interface {
		// ListContributions returns the contributions of week, newest first. Week 0 lists all weeks.
		ListContributions(ctx context.Context, week int) ([]Contribution, error)
		GetContribution(ctx context.Context, id string) (Contribution, error)
		CreateContribution(ctx context.Context, c Contribution) (Contribution, error)
		DeleteContribution(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		files    *attachment.Helper
		conf     *core.Config
		validate *validator.Validate
	}
)

func NewService(repo Repository, files *attachment.Helper, conf *core.Config, validate *validator.Validate) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(files, "files"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(validate, "validate"),
	).CheckAndPanic()
	return &Service{repo: repo, files: files, conf: conf, validate: validate}
}

func (svc *Service) List(ctx context.Context, week int) ([]Contribution, error) {
	items, err := svc.repo.ListContributions(ctx, week)
	if err != nil {
		return nil, errors.Wrap(err, "listing contributions")
	}
	for i := range items {
		items[i] = svc.decorate(items[i])
	}
	return items, nil
}

// Create stores the file, then the row. Image and video posts need a file of the matching media
// type; text posts need a caption and may carry a file.
func (svc *Service) Create(ctx context.Context, nc NewContribution, file *attachment.File) (Contribution, error) {
	nc.clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Contribution{}, err
	}

	c := Contribution{
		Week:            nc.Week,
		ContributorName: nc.ContributorName,
		MediaType:       nc.MediaType,
		Caption:         nc.Caption,
		CreatedAt:       core.NowFunc(),
	}
	rule := attachment.Rule{MaxSize: svc.conf.Uploads.MaxUploadSize}
	switch nc.MediaType {
	case MediaImage, MediaVideo:
		if file == nil {
			return Contribution{}, core.NewValidationError(errFileRequired, core.FieldError{Field: "file", Error: errFileRequired.Error()})
		}
		rule.Accept = []string{string(nc.MediaType) + "/"}
	case MediaText:
		if c.Caption == "" {
			return Contribution{}, core.NewValidationError(errCaptionRequired, core.FieldError{Field: "caption", Error: errCaptionRequired.Error()})
		}
	}

	if file != nil {
		ref, err := svc.files.Upload(ctx, *file, "contributions/week-"+strconv.Itoa(nc.Week), rule)
		if err != nil {
			return Contribution{}, err
		}
		c.Ref = &ref
		c.FileSize = file.Size
	}

	var created Contribution
	err := svc.files.Swap(ctx, nil, c.Ref, func(ctx context.Context) error {
		var err error
		created, err = svc.repo.CreateContribution(ctx, c)
		return errors.Wrap(err, "creating contribution")
	})
	if err != nil {
		return Contribution{}, err
	}
	return svc.decorate(created), nil
}

// Delete removes the file, then the row. Any signed-in user may delete a contribution.
func (svc *Service) Delete(ctx context.Context, id string) error {
	c, err := svc.repo.GetContribution(ctx, id)
	if err != nil {
		return err
	}
	svc.files.Clear(ctx, c.Ref)
	return svc.repo.DeleteContribution(ctx, id)
}

func (svc *Service) decorate(c Contribution) Contribution {
	c.FileURL = ""
	if c.Ref != nil {
		c.FileURL = svc.files.PublicURL(c.Path)
	}
	return c
}
