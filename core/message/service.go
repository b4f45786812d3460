package message

import (
	"context"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/user"
)

var (
	errEmptyMessage    = errors.New("a message needs content or a file")
	errUnknownReceiver = errors.New("receiver does not exist")
)

type (
	Repository interface {
		// Thread returns the messages exchanged between a and b, oldest first.
		Thread(ctx context.Context, a, b string) ([]Message, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		DeleteMessage(ctx context.Context, id string) error
	}

	// Users resolves message receivers.
	Users interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		users    Users
		files    *attachment.Helper
		conf     *core.Config
		validate *validator.Validate
	}
)

func NewService(repo Repository, users Users, files *attachment.Helper, conf *core.Config, validate *validator.Validate) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(files, "files"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(validate, "validate"),
	).CheckAndPanic()
	return &Service{repo: repo, users: users, files: files, conf: conf, validate: validate}
}

func (svc *Service) Thread(ctx context.Context, a, b string) ([]Message, error) {
	msgs, err := svc.repo.Thread(ctx, a, b)
	if err != nil {
		return nil, errors.Wrap(err, "getting thread")
	}
	for i := range msgs {
		msgs[i] = svc.decorate(msgs[i])
	}
	return msgs, nil
}

func (svc *Service) checkReceiver(ctx context.Context, id string) error {
	if _, err := svc.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NewValidationError(errUnknownReceiver, core.FieldError{Field: "receiver_id", Error: errUnknownReceiver.Error()})
		}
		return errors.Wrap(err, "getting receiver")
	}
	return nil
}

// SendText stores the optional attachment, then the message.
func (svc *Service) SendText(ctx context.Context, sender user.User, nm NewTextMessage, file *attachment.File) (Message, error) {
	nm.clean()
	if err := svc.validate.Struct(nm); err != nil {
		return Message{}, err
	}
	if nm.Content == nil && file == nil {
		return Message{}, core.NewValidationError(errEmptyMessage, core.FieldError{Field: "content", Error: errEmptyMessage.Error()})
	}
	if err := svc.checkReceiver(ctx, nm.ReceiverID); err != nil {
		return Message{}, err
	}

	msg := Message{
		SenderID:    sender.ID,
		ReceiverID:  nm.ReceiverID,
		Content:     nm.Content,
		MessageType: KindText,
		CreatedAt:   core.NowFunc(),
	}
	if file != nil {
		ref, err := svc.files.Upload(ctx, *file, "messages/"+sender.ID, attachment.Rule{MaxSize: svc.conf.Uploads.MaxUploadSize})
		if err != nil {
			return Message{}, err
		}
		msg.Ref = &ref
	}
	return svc.create(ctx, msg)
}

// SendAudio stores the recording, then an audio message pointing at its public URL.
func (svc *Service) SendAudio(ctx context.Context, sender user.User, nm NewAudioMessage, file attachment.File) (Message, error) {
	nm.clean()
	if err := svc.validate.Struct(nm); err != nil {
		return Message{}, err
	}
	if err := svc.checkReceiver(ctx, nm.ReceiverID); err != nil {
		return Message{}, err
	}

	rule := attachment.Rule{MaxSize: svc.conf.Uploads.AudioMaxUploadSize, Accept: []string{"audio/"}}
	ref, err := svc.files.Upload(ctx, file, "audio/"+sender.ID, rule)
	if err != nil {
		return Message{}, err
	}
	url := svc.files.PublicURL(ref.Path)
	return svc.create(ctx, Message{
		SenderID:    sender.ID,
		ReceiverID:  nm.ReceiverID,
		Caption:     nm.Caption,
		AudioURL:    &url,
		Ref:         &ref,
		MessageType: KindAudio,
		Duration:    int(math.Round(nm.Duration)),
		CreatedAt:   core.NowFunc(),
	})
}

func (svc *Service) create(ctx context.Context, msg Message) (Message, error) {
	var created Message
	err := svc.files.Swap(ctx, nil, msg.Ref, func(ctx context.Context) error {
		var err error
		created, err = svc.repo.CreateMessage(ctx, msg)
		return errors.Wrap(err, "creating message")
	})
	if err != nil {
		return Message{}, err
	}
	return svc.decorate(created), nil
}

// Delete removes the message file, then the row. Only the sender may delete a message.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	msg, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if msg.SenderID != actor.ID {
		return core.ErrPermissionDenied
	}
	svc.files.Clear(ctx, msg.Ref)
	return svc.repo.DeleteMessage(ctx, id)
}

func (svc *Service) decorate(msg Message) Message {
	msg.FileURL = ""
	if msg.Ref != nil {
		msg.FileURL = svc.files.PublicURL(msg.Path)
	}
	return msg
}
