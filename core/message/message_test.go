package message_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/listctl"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/recorder"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/testutil"
)

type fixture struct {
	svc    *message.Service
	store  *testutil.MemStore
	logger *testutil.Logger
	prof   user.User
	stud   user.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()
	db := inmemdb.NewDB()
	userRepo := inmemdb.NewUserRepository(db)
	validate := testutil.NewValidator(conf)
	users := user.NewService(userRepo, emailsvc.NewConsoleServiceMock(conf, logger), conf, validate)
	store := testutil.NewMemStore()

	return fixture{
		svc:    message.NewService(inmemdb.NewMessageRepository(db), users, attachment.NewHelper(store, logger), conf, validate),
		store:  store,
		logger: logger,
		prof:   testutil.CreateUser(t, userRepo, "Prof", "prof@uni.test", "", []string{user.RoleProfessor}, true),
		stud:   testutil.CreateUser(t, userRepo, "Sam", "sam@uni.test", "", []string{user.RoleStudent}, true),
	}
}

func TestThreadController_text(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	studThread := message.NewThreadController(f.svc, f.stud, f.prof.ID, listctl.AlwaysConfirm, f.logger)
	profThread := message.NewThreadController(f.svc, f.prof, f.stud.ID, listctl.AlwaysConfirm, f.logger)

	first, err := studThread.SendText(ctx, "Hello professor", nil)
	require.NoError(t, err)
	_, err = profThread.SendText(ctx, "Hi Sam", nil)
	require.NoError(t, err)
	notes := &attachment.File{Name: "notes.txt", MimeType: "text/plain", Size: 5, Body: strings.NewReader("notes")}
	withFile, err := studThread.SendText(ctx, "", notes)
	require.NoError(t, err)

	require.NoError(t, studThread.Load(ctx))
	items := studThread.Items()
	require.Len(t, items, 3)
	assert.Equal(t, first.ID, items[0].ID, "oldest first")
	assert.Equal(t, "Hello professor", *items[0].Content)
	assert.Equal(t, message.KindText, items[0].MessageType)
	assert.Equal(t, f.prof.ID, items[1].SenderID)
	assert.Equal(t, withFile.ID, items[2].ID)
	assert.Nil(t, items[2].Content)
	assert.Equal(t, "notes.txt", items[2].Name)
	assert.Equal(t, "https://cdn.test/"+items[2].Path, items[2].FileURL)

	t.Run("empty message", func(t *testing.T) {
		_, err := studThread.SendText(ctx, "   ", nil)
		assert.Equal(t, "a message needs content or a file", core.StatusMessage(err))
		assert.Len(t, studThread.Items(), 3)
	})

	t.Run("unknown receiver", func(t *testing.T) {
		ghost := message.NewThreadController(f.svc, f.stud, "ghost", listctl.AlwaysConfirm, f.logger)
		_, err := ghost.SendText(ctx, "anyone?", nil)
		assert.Equal(t, "receiver does not exist", core.StatusMessage(err))
	})
}

func TestThreadController_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	studThread := message.NewThreadController(f.svc, f.stud, f.prof.ID, listctl.AlwaysConfirm, f.logger)
	profThread := message.NewThreadController(f.svc, f.prof, f.stud.ID, listctl.AlwaysConfirm, f.logger)

	notes := &attachment.File{Name: "notes.txt", MimeType: "text/plain", Size: 5, Body: strings.NewReader("notes")}
	msg, err := studThread.SendText(ctx, "see attached", notes)
	require.NoError(t, err)
	require.NoError(t, profThread.Load(ctx))

	t.Run("only the sender may delete", func(t *testing.T) {
		err := profThread.Delete(ctx, msg.ID)
		assert.ErrorIs(t, err, core.ErrPermissionDenied)
		assert.Equal(t, "You are not allowed to do this.", profThread.Status())
		assert.Len(t, profThread.Items(), 1)
		assert.True(t, f.store.Has(msg.Path))
	})

	t.Run("sender deletes file and row", func(t *testing.T) {
		require.NoError(t, studThread.Delete(ctx, msg.ID))
		assert.Empty(t, studThread.Items())
		assert.False(t, f.store.Has(msg.Path))

		thread, err := f.svc.Thread(ctx, f.stud.ID, f.prof.ID)
		require.NoError(t, err)
		assert.Empty(t, thread)
	})
}

func TestThreadController_recording(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	thread := message.NewThreadController(f.svc, f.stud, f.prof.ID, listctl.AlwaysConfirm, f.logger)

	session := recorder.NewSession(recorder.Options{
		Sender:      thread,
		Logger:      f.logger,
		MaxFileSize: core.NewTestConfig().Uploads.AudioMaxUploadSize,
		TempDir:     t.TempDir(),
	})
	defer session.Close()

	data := testutil.WAV(3)
	require.NoError(t, session.LoadFromFile(attachment.File{
		Name:     "question.wav",
		MimeType: "audio/wav",
		Size:     int64(len(data)),
		Body:     bytes.NewReader(data),
	}))
	session.SetCaption("About the exam")
	require.NoError(t, session.Send(ctx))
	assert.Equal(t, recorder.Idle, session.State())
	assert.Nil(t, session.Artifact())

	items := thread.Items()
	require.Len(t, items, 1)
	msg := items[0]
	assert.Equal(t, message.KindAudio, msg.MessageType)
	assert.Equal(t, 3, msg.Duration)
	assert.Equal(t, "About the exam", *msg.Caption)
	require.NotNil(t, msg.AudioURL)
	assert.Equal(t, "https://cdn.test/"+msg.Path, *msg.AudioURL)
	assert.Equal(t, data, f.store.Objects[msg.Path])
	assert.Equal(t, "Voice message sent.", thread.Status())
}

func TestThreadController_recording_longFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	thread := message.NewThreadController(f.svc, f.stud, f.prof.ID, listctl.AlwaysConfirm, f.logger)

	session := recorder.NewSession(recorder.Options{
		Sender:      thread,
		Logger:      f.logger,
		MaxFileSize: core.NewTestConfig().Uploads.AudioMaxUploadSize,
		TempDir:     t.TempDir(),
	})
	defer session.Close()

	// loaded files are not bound by the live capture limit
	data := testutil.WAV(660)
	require.NoError(t, session.LoadFromFile(attachment.File{
		Name:     "lecture.wav",
		MimeType: "audio/wav",
		Size:     int64(len(data)),
		Body:     bytes.NewReader(data),
	}))
	assert.Equal(t, 11*time.Minute, session.Duration())

	require.NoError(t, session.Send(ctx))
	assert.Equal(t, recorder.Idle, session.State())
	items := thread.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 660, items[0].Duration)
}

func TestService_SendAudio_duration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name    string
		secs    float64
		want    int
		wantErr bool
	}{
		{name: "fractional", secs: 45.3, want: 45},
		{name: "rounds up", secs: 45.5, want: 46},
		{name: "longer than a live recording", secs: 3600, want: 3600},
		{name: "negative", secs: -1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := attachment.File{Name: "a.webm", MimeType: "audio/webm", Size: 1, Body: strings.NewReader("x")}
			msg, err := f.svc.SendAudio(ctx, f.stud, message.NewAudioMessage{ReceiverID: f.prof.ID, Duration: tt.secs}, file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Duration)
		})
	}
}

func TestService_SendAudio_rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		file attachment.File
	}{
		{
			name: "not audio",
			file: attachment.File{Name: "a.pdf", MimeType: "application/pdf", Size: 4, Body: strings.NewReader("%PDF")},
		},
		{
			name: "over the audio ceiling",
			file: attachment.File{Name: "long.webm", MimeType: "audio/webm", Size: 100*core.MB + 1, Body: strings.NewReader("x")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendAudio(ctx, f.stud, message.NewAudioMessage{ReceiverID: f.prof.ID, Duration: 1}, tt.file)
			assert.ErrorIs(t, err, attachment.ErrInvalidFile)
			puts, _ := f.store.Calls()
			assert.Zero(t, puts)
		})
	}

	t.Run("audio ceiling is separate from other uploads", func(t *testing.T) {
		big := attachment.File{Name: "lecture.webm", MimeType: "audio/webm", Size: 20 * core.MB, Body: strings.NewReader("x")}
		_, err := f.svc.SendAudio(ctx, f.stud, message.NewAudioMessage{ReceiverID: f.prof.ID, Duration: 1}, big)
		require.NoError(t, err)
	})
}
