package announcement_test

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/listctl"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/testutil"
)

var errDB = errors.New("db down")

type fixture struct {
	svc    *announcement.Service
	repo   announcement.Repository
	store  *testutil.MemStore
	mail   *emailsvc.ConsoleService
	logger *testutil.Logger
	prof   user.User
	stud   user.User
}

// failingRepo fails every write with err.
type failingRepo struct {
	announcement.Repository
	err error
}

func (r failingRepo) CreateAnnouncement(context.Context, announcement.Announcement) (announcement.Announcement, error) {
	return announcement.Announcement{}, r.err
}

func (r failingRepo) UpdateAnnouncement(context.Context, announcement.Announcement) (announcement.Announcement, error) {
	return announcement.Announcement{}, r.err
}

func newFixture(t *testing.T, wrap ...func(announcement.Repository) announcement.Repository) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.NewDB()
	userRepo := inmemdb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	validate := testutil.NewValidator(conf)
	users := user.NewService(userRepo, mailSvc, conf, validate)

	repo := inmemdb.NewAnnouncementRepository(db)
	svcRepo := repo
	for _, w := range wrap {
		svcRepo = w(svcRepo)
	}
	store := testutil.NewMemStore()
	svc := announcement.NewService(svcRepo, attachment.NewHelper(store, logger), users, mailSvc, conf, validate, logger)
	announcement.NotifySync(svc)

	return fixture{
		svc:    svc,
		repo:   repo,
		store:  store,
		mail:   mailSvc,
		logger: logger,
		prof:   testutil.CreateUser(t, userRepo, "Prof Ada", "ada@uni.test", "", []string{user.RoleProfessor}, true),
		stud:   testutil.CreateUser(t, userRepo, "Sam", "sam@uni.test", "", []string{user.RoleStudent}, true),
	}
}

func pdf(name string, size int64) *attachment.File {
	body := "%PDF-1.4 readings"
	if size == 0 {
		size = int64(len(body))
	}
	return &attachment.File{Name: name, MimeType: "application/pdf", Size: size, Body: strings.NewReader(body)}
}

func ptr(s string) *string { return &s }

func TestController_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ctl := announcement.NewController(f.svc, f.prof, "c1", listctl.AlwaysConfirm, f.logger)

	_, err := ctl.Create(ctx, announcement.NewAnnouncement{Title: "Welcome", Content: "Hello class"}, nil)
	require.NoError(t, err)
	require.NoError(t, ctl.Load(ctx))

	created, err := ctl.Create(ctx, announcement.NewAnnouncement{
		Title:   "Week 3",
		Content: "Read chapter **four**.",
	}, pdf("readings.pdf", 0))
	require.NoError(t, err)

	items := ctl.Items()
	require.Len(t, items, 2)
	head := items[0]
	assert.Equal(t, created.ID, head.ID, "new announcements go first")
	require.NotNil(t, head.Ref)
	assert.Equal(t, "readings.pdf", head.Name)
	assert.NotEmpty(t, head.Path)
	assert.True(t, f.store.Has(head.Path))
	assert.Equal(t, "https://cdn.test/"+head.Path, head.FileURL)
	assert.Equal(t, "c1", head.CourseID)
	assert.Contains(t, head.ContentHTML, "<strong>four</strong>")
	assert.Equal(t, "Announcement posted.", ctl.Status())

	sent := f.mail.SentMessages()
	require.Len(t, sent, 2, "one notification per announcement")
	last := sent[1]
	assert.Equal(t, created.ID, last.TemplateData.(map[string]interface{})["AnnouncementID"])
	require.Len(t, last.Bcc, 1)
	assert.Equal(t, "sam@uni.test", last.Bcc[0].Address)
	assert.Empty(t, last.To)
	assert.Contains(t, last.TextContent, "Attachment: readings.pdf")
}

func TestService_Create_rejected(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		actor     func(fixture) user.User
		data      announcement.NewAnnouncement
		file      *attachment.File
		failPut   bool
		check     func(t *testing.T, err error)
		wantPuts  int
		wantError int
	}{
		{
			name:  "students cannot post",
			actor: func(f fixture) user.User { return f.stud },
			data:  announcement.NewAnnouncement{Title: "t", Content: "c"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, core.ErrPermissionDenied) },
		},
		{
			name: "blank title",
			data: announcement.NewAnnouncement{Title: "   ", Content: "c"},
			file: pdf("a.pdf", 0),
			check: func(t *testing.T, err error) {
				assert.Equal(t, "title is invalid", core.StatusMessage(err))
			},
		},
		{
			name:  "link must be a url",
			data:  announcement.NewAnnouncement{Title: "t", Content: "c", Link: ptr("not a url")},
			check: func(t *testing.T, err error) { assert.Equal(t, "link is invalid", core.StatusMessage(err)) },
		},
		{
			name: "link label needs a link",
			data: announcement.NewAnnouncement{Title: "t", Content: "c", LinkLabel: ptr("Slides")},
			check: func(t *testing.T, err error) {
				assert.Equal(t, "a link label needs a link", core.StatusMessage(err))
			},
		},
		{
			name:  "oversize file never reaches storage",
			data:  announcement.NewAnnouncement{Title: "t", Content: "c"},
			file:  pdf("big.pdf", 10*core.MB+1),
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, attachment.ErrInvalidFile) },
		},
		{
			name:     "storage failure",
			data:     announcement.NewAnnouncement{Title: "t", Content: "c"},
			file:     pdf("a.pdf", 0),
			failPut:  true,
			wantPuts: 1,
			check: func(t *testing.T, err error) {
				var upErr *attachment.UploadError
				assert.ErrorAs(t, err, &upErr)
			},
			wantError: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.FailPut = tt.failPut
			actor := f.prof
			if tt.actor != nil {
				actor = tt.actor(f)
			}
			ctl := announcement.NewController(f.svc, actor, "", listctl.AlwaysConfirm, f.logger)

			_, err := ctl.Create(ctx, tt.data, tt.file)
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, core.StatusMessage(err), ctl.Status())
			assert.Empty(t, ctl.Items())

			puts, _ := f.store.Calls()
			assert.Equal(t, tt.wantPuts, puts)
			rows, _ := f.repo.ListAnnouncements(ctx, "")
			assert.Empty(t, rows)
			assert.Empty(t, f.mail.SentMessages())
			assert.Equal(t, tt.wantError, f.logger.Count("error"))
		})
	}
}

func TestService_Create_rowFailureRemovesUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(r announcement.Repository) announcement.Repository { return failingRepo{r, errDB} })

	_, err := f.svc.Create(ctx, f.prof, announcement.NewAnnouncement{Title: "t", Content: "c"}, pdf("a.pdf", 0))
	assert.ErrorIs(t, err, errDB)
	puts, removes := f.store.Calls()
	assert.Equal(t, 1, puts)
	assert.Equal(t, 1, removes)
	assert.Empty(t, f.store.Keys())
}

func TestController_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ctl := announcement.NewController(f.svc, f.prof, "c1", listctl.AlwaysConfirm, f.logger)

	a, err := ctl.Create(ctx, announcement.NewAnnouncement{Title: "Week 3", Content: "c"}, pdf("v1.pdf", 0))
	require.NoError(t, err)
	v1 := a.Path

	t.Run("keep attachment", func(t *testing.T) {
		got, err := ctl.Update(ctx, a.ID, announcement.UpdateAnnouncement{Title: "Week 3 (edited)", Content: "c"}, nil)
		require.NoError(t, err)
		assert.Equal(t, v1, got.Path)
		assert.Equal(t, "Week 3 (edited)", ctl.Items()[0].Title)
		assert.Equal(t, a.CreatedAt, got.CreatedAt)
	})

	t.Run("replace attachment", func(t *testing.T) {
		got, err := ctl.Update(ctx, a.ID, announcement.UpdateAnnouncement{Title: "Week 3", Content: "c"}, pdf("v2.pdf", 0))
		require.NoError(t, err)
		assert.Equal(t, "v2.pdf", got.Name)
		assert.Equal(t, []string{got.Path}, f.store.Keys())
		assert.Equal(t, "v2.pdf", ctl.Items()[0].Name)
	})

	t.Run("clear attachment", func(t *testing.T) {
		got, err := ctl.Update(ctx, a.ID, announcement.UpdateAnnouncement{Title: "Week 3", Content: "c", RemoveFile: true}, nil)
		require.NoError(t, err)
		assert.Nil(t, got.Ref)
		assert.Empty(t, got.FileURL)
		assert.Empty(t, f.store.Keys())
		assert.Equal(t, "Announcement updated.", ctl.Status())
	})

	t.Run("missing announcement", func(t *testing.T) {
		_, err := ctl.Update(ctx, "missing", announcement.UpdateAnnouncement{Title: "t", Content: "c"}, nil)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestService_Update_rowFailureKeepsOldFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, err := f.svc.Create(ctx, f.prof, announcement.NewAnnouncement{Title: "t", Content: "c"}, pdf("v1.pdf", 0))
	require.NoError(t, err)

	broken := announcement.NewService(failingRepo{f.repo, errDB}, attachment.NewHelper(f.store, f.logger),
		emptyRecipients{}, f.mail, core.NewTestConfig(), testutil.NewValidator(core.NewTestConfig()), f.logger)
	_, err = broken.Update(ctx, f.prof, a.ID, announcement.UpdateAnnouncement{Title: "t", Content: "c"}, pdf("v2.pdf", 0))
	assert.ErrorIs(t, err, errDB)
	assert.Equal(t, []string{a.Path}, f.store.Keys())

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Path, got.Path)
}

func TestController_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ctl := announcement.NewController(f.svc, f.prof, "", listctl.AlwaysConfirm, f.logger)

	a, err := ctl.Create(ctx, announcement.NewAnnouncement{Title: "Week 3", Content: "c"}, pdf("readings.pdf", 0))
	require.NoError(t, err)

	require.NoError(t, ctl.Delete(ctx, a.ID))
	assert.Empty(t, ctl.Items())
	assert.False(t, f.store.Has(a.Path))
	_, err = f.repo.GetAnnouncement(ctx, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "Announcement deleted.", ctl.Status())

	err = ctl.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "Something went wrong, please try again.", ctl.Status())
}

func TestController_Delete_declined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var prompt string
	confirm := listctl.ConfirmFunc(func(_ context.Context, p string) (bool, error) {
		prompt = p
		return false, nil
	})
	ctl := announcement.NewController(f.svc, f.prof, "", confirm, f.logger)
	a, err := ctl.Create(ctx, announcement.NewAnnouncement{Title: "Week 3", Content: "c"}, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, ctl.Delete(ctx, a.ID), listctl.ErrCancelled)
	assert.Equal(t, `Delete announcement "Week 3"?`, prompt)
	assert.Len(t, ctl.Items(), 1)
	_, err = f.repo.GetAnnouncement(ctx, a.ID)
	assert.NoError(t, err)
}

func TestService_Delete_storageFailureStillDeletesRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, err := f.svc.Create(ctx, f.prof, announcement.NewAnnouncement{Title: "t", Content: "c"}, pdf("a.pdf", 0))
	require.NoError(t, err)

	f.store.FailRemove = true
	require.NoError(t, f.svc.Delete(ctx, f.prof, a.ID))
	_, err = f.repo.GetAnnouncement(ctx, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, 1, f.logger.Count("warn"))

	assert.ErrorIs(t, f.svc.Delete(ctx, f.stud, a.ID), core.ErrPermissionDenied)
}

type emptyRecipients struct{}

func (emptyRecipients) EmailsByRole(context.Context, string) ([]mail.Address, error) { return nil, nil }

func TestService_Notify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, err := f.svc.Create(ctx, f.prof, announcement.NewAnnouncement{
		CourseID:  "c1",
		Title:     "Exam",
		Content:   "Bring a pen <script>alert(1)</script>",
		Link:      ptr("https://uni.test/exam"),
		LinkLabel: ptr("Details"),
	}, nil)
	require.NoError(t, err)
	assert.NotContains(t, a.ContentHTML, "<script>")

	res, err := f.svc.Notify(ctx, a.ID, "c2")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.RecipientCount)

	sent := f.mail.SentMessages()
	last := sent[len(sent)-1]
	assert.Equal(t, "http://localhost:8000/dev/mail/"+last.ID, res.PreviewURL)
	assert.Contains(t, last.TextContent, "Details: https://uni.test/exam")
	assert.Contains(t, last.TextContent, "/courses/c2/announcements")
	assert.NotContains(t, last.HTMLContent, "<script>")

	_, err = f.svc.Notify(ctx, "missing", "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	quiet := announcement.NewService(f.repo, attachment.NewHelper(f.store, f.logger), emptyRecipients{}, f.mail,
		core.NewTestConfig(), testutil.NewValidator(core.NewTestConfig()), f.logger)
	res, err = quiet.Notify(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, announcement.NotifyResult{Success: true}, res)
}
