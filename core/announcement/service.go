package announcement

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/user"
)

var errLinkLabelWithoutLink = errors.New("a link label needs a link")

type (
	Repository interface {
		// ListAnnouncements returns the announcements of courseID, newest first. An empty courseID
		// lists every course.
		ListAnnouncements(ctx context.Context, courseID string) ([]Announcement, error)
		GetAnnouncement(ctx context.Context, id string) (Announcement, error)
		CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
		UpdateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string) error
	}

	// Recipients resolves the addresses notified of new announcements.
	Recipients interface {
		EmailsByRole(ctx context.Context, role string) ([]mail.Address, error)
	}

	Service struct {
		repo       Repository
		files      *attachment.Helper
		recipients Recipients
		mailSvc    core.EmailService
		conf       *core.Config
		validate   *validator.Validate
		logger     core.Logger

		md       goldmark.Markdown
		policy   *bluemonday.Policy
		runAsync func(func())
	}
)

func NewService(
	repo Repository,
	files *attachment.Helper,
	recipients Recipients,
	mailSvc core.EmailService,
	conf *core.Config,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(files, "files"),
		vala.IsNotNil(recipients, "recipients"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()
	return &Service{
		repo:       repo,
		files:      files,
		recipients: recipients,
		mailSvc:    mailSvc,
		conf:       conf,
		validate:   validate,
		logger:     logger,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy:   bluemonday.UGCPolicy(),
		runAsync: func(f func()) { go f() },
	}
}

func canManage(actor user.User) bool {
	return actor.IsProfessor() || actor.IsAdmin()
}

func (svc *Service) rule() attachment.Rule {
	return attachment.Rule{MaxSize: svc.conf.Uploads.MaxUploadSize}
}

func checkLink(link, label *string) error {
	if label != nil && link == nil {
		return core.NewValidationError(errLinkLabelWithoutLink, core.FieldError{Field: "link_label", Error: errLinkLabelWithoutLink.Error()})
	}
	return nil
}

func (svc *Service) List(ctx context.Context, courseID string) ([]Announcement, error) {
	items, err := svc.repo.ListAnnouncements(ctx, core.CleanString(courseID))
	if err != nil {
		return nil, errors.Wrap(err, "listing announcements")
	}
	for i := range items {
		items[i] = svc.decorate(items[i])
	}
	return items, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Announcement, error) {
	a, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	return svc.decorate(a), nil
}

// Create stores the attachment, then the row, then notifies students in the background.
func (svc *Service) Create(ctx context.Context, actor user.User, na NewAnnouncement, file *attachment.File) (Announcement, error) {
	if !canManage(actor) {
		return Announcement{}, core.ErrPermissionDenied
	}
	na.clean()
	if err := svc.validate.Struct(na); err != nil {
		return Announcement{}, err
	}
	if err := checkLink(na.Link, na.LinkLabel); err != nil {
		return Announcement{}, err
	}

	now := core.NowFunc()
	a := Announcement{
		CourseID:  na.CourseID,
		Title:     na.Title,
		Content:   na.Content,
		Link:      na.Link,
		LinkLabel: na.LinkLabel,
		AuthorID:  actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if file != nil {
		ref, err := svc.files.Upload(ctx, *file, "announcements/"+actor.ID, svc.rule())
		if err != nil {
			return Announcement{}, err
		}
		a.Ref = &ref
	}

	var created Announcement
	err := svc.files.Swap(ctx, nil, a.Ref, func(ctx context.Context) error {
		var err error
		created, err = svc.repo.CreateAnnouncement(ctx, a)
		return errors.Wrap(err, "creating announcement")
	})
	if err != nil {
		return Announcement{}, err
	}

	svc.runAsync(func() {
		if _, err := svc.Notify(context.Background(), created.ID, created.CourseID); err != nil {
			svc.logger.Error(fmt.Sprintf("notifying announcement %s: %v", created.ID, err), err)
		}
	})
	return svc.decorate(created), nil
}

// Update edits the announcement. The attachment is replaced when file is set, cleared when
// RemoveFile is set, and kept otherwise.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, ua UpdateAnnouncement, file *attachment.File) (Announcement, error) {
	if !canManage(actor) {
		return Announcement{}, core.ErrPermissionDenied
	}
	ua.clean()
	if err := svc.validate.Struct(ua); err != nil {
		return Announcement{}, err
	}
	if err := checkLink(ua.Link, ua.LinkLabel); err != nil {
		return Announcement{}, err
	}

	a, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	old := a.Ref

	a.Title = ua.Title
	a.Content = ua.Content
	a.Link = ua.Link
	a.LinkLabel = ua.LinkLabel
	a.UpdatedAt = core.NowFunc()

	var updated Announcement
	write := func(ctx context.Context) error {
		var err error
		updated, err = svc.repo.UpdateAnnouncement(ctx, a)
		return errors.Wrap(err, "updating announcement")
	}

	switch {
	case file != nil:
		_, err = svc.files.Replace(ctx, old, *file, "announcements/"+actor.ID, svc.rule(), func(ctx context.Context, ref *attachment.Ref) error {
			a.Ref = ref
			return write(ctx)
		})
	case ua.RemoveFile:
		a.Ref = nil
		err = svc.files.Swap(ctx, old, nil, write)
	default:
		err = write(ctx)
	}
	if err != nil {
		return Announcement{}, err
	}
	return svc.decorate(updated), nil
}

// Delete removes the attachment, then the row. A failed object removal does not keep the row.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if !canManage(actor) {
		return core.ErrPermissionDenied
	}
	a, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return err
	}
	svc.files.Clear(ctx, a.Ref)
	return svc.repo.DeleteAnnouncement(ctx, id)
}

// Notify emails the announcement to every active student in a single BCC message. courseID
// overrides the course linked from the email when set.
func (svc *Service) Notify(ctx context.Context, id, courseID string) (NotifyResult, error) {
	a, err := svc.Get(ctx, id)
	if err != nil {
		return NotifyResult{}, err
	}
	if courseID == "" {
		courseID = a.CourseID
	}

	students, err := svc.recipients.EmailsByRole(ctx, user.RoleStudent)
	if err != nil {
		return NotifyResult{}, errors.Wrap(err, "getting recipients")
	}
	if len(students) == 0 {
		return NotifyResult{Success: true}, nil
	}

	data := map[string]interface{}{
		"AnnouncementID": a.ID,
		"CourseID":       courseID,
		"Title":          a.Title,
		"ContentText":    a.Content,
		"ContentHTML":    template.HTML(a.ContentHTML), // sanitized by decorate
		"Link":           deref(a.Link),
		"LinkLabel":      deref(a.LinkLabel),
		"FileName":       "",
		"FileURL":        a.FileURL,
	}
	if a.Ref != nil {
		data["FileName"] = a.Name
	}
	msg := core.NewEmailMessage(svc.conf, a.Title, "announcement_notification", data)
	msg.Bcc = students
	svc.mailSvc.SendMessages(msg)

	res := NotifyResult{Success: true, RecipientCount: len(students)}
	if previewer, ok := svc.mailSvc.(core.EmailPreviewer); ok {
		res.PreviewURL = previewer.PreviewURL(msg)
	}
	return res, nil
}

// decorate fills the derived fields: the public file URL and the sanitized HTML content.
func (svc *Service) decorate(a Announcement) Announcement {
	a.FileURL = ""
	if a.Ref != nil {
		a.FileURL = svc.files.PublicURL(a.Path)
	}
	a.ContentHTML = svc.renderContent(a.Content)
	return a
}

func (svc *Service) renderContent(content string) string {
	var buf bytes.Buffer
	if err := svc.md.Convert([]byte(content), &buf); err != nil {
		svc.logger.Warn(fmt.Sprintf("rendering markdown: %v", err), err)
		return template.HTMLEscapeString(content)
	}
	return svc.policy.Sanitize(buf.String())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
