package message

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/listctl"
	"github.com/trezcool/darasa/core/recorder"
	"github.com/trezcool/darasa/core/user"
)

// ThreadController keeps the chronological conversation between the current user and another one.
// It is the recorder.Sender of the thread's capture session.
type ThreadController struct {
	svc   *Service
	me    user.User
	other string
	list  *listctl.List[Message]
}

var _ recorder.Sender = (*ThreadController)(nil)

func NewThreadController(svc *Service, me user.User, other string, confirm listctl.Confirmer, logger core.Logger) *ThreadController {
	return &ThreadController{
		svc:   svc,
		me:    me,
		other: other,
		list:  listctl.New(listctl.Chronological, func(m Message) string { return m.ID }, confirm, logger),
	}
}

func (c *ThreadController) Load(ctx context.Context) error {
	return c.list.Load(ctx, func(ctx context.Context) ([]Message, error) {
		return c.svc.Thread(ctx, c.me.ID, c.other)
	})
}

func (c *ThreadController) SendText(ctx context.Context, content string, file *attachment.File) (Message, error) {
	nm := NewTextMessage{ReceiverID: c.other}
	if content != "" {
		nm.Content = &content
	}
	return c.list.Create(ctx, func(ctx context.Context) (Message, error) {
		return c.svc.SendText(ctx, c.me, nm, file)
	}, "Message sent.")
}

// SendAudio sends a finished recording to the other participant.
func (c *ThreadController) SendAudio(ctx context.Context, up recorder.AudioUpload) error {
	nm := NewAudioMessage{
		ReceiverID: c.other,
		Duration:   up.Duration.Seconds(),
	}
	if up.Caption != "" {
		nm.Caption = &up.Caption
	}
	_, err := c.list.Create(ctx, func(ctx context.Context) (Message, error) {
		return c.svc.SendAudio(ctx, c.me, nm, up.File)
	}, "Voice message sent.")
	return err
}

// Delete asks for confirmation before deleting; it returns listctl.ErrCancelled when declined.
func (c *ThreadController) Delete(ctx context.Context, id string) error {
	return c.list.Delete(ctx, id, "Delete this message?", func(ctx context.Context) error {
		return c.svc.Delete(ctx, c.me, id)
	}, "Message deleted.")
}

func (c *ThreadController) Items() []Message { return c.list.Items() }
func (c *ThreadController) Status() string   { return c.list.Status() }
