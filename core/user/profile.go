package user

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp" // register webp decoder

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

const avatarSize = 512

type (
	ProfileRepository interface {
		GetProfile(ctx context.Context, userID string) (Profile, error)
		UpsertProfile(ctx context.Context, p Profile) (Profile, error)
	}

	ProfileService struct {
		repo     ProfileRepository
		users    Repository
		files    *attachment.Helper
		conf     *core.Config
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewProfileService(
	repo ProfileRepository,
	users Repository,
	files *attachment.Helper,
	conf *core.Config,
	validate *validator.Validate,
	logger core.Logger,
) *ProfileService {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(files, "files"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()
	return &ProfileService{repo: repo, users: users, files: files, conf: conf, validate: validate, logger: logger}
}

// Get returns the user's profile, falling back to defaults taken from the account.
func (svc *ProfileService) Get(ctx context.Context, userID string) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, userID)
	if err == nil {
		return svc.withURL(p), nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Profile{}, errors.Wrap(err, "getting profile")
	}

	usr, err := svc.users.GetUserByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{UserID: usr.ID, DisplayName: usr.Name, UpdatedAt: usr.UpdatedAt}, nil
}

// Update creates or updates the profile. A new avatar is resized and stored before the previous
// one is removed.
func (svc *ProfileService) Update(ctx context.Context, userID string, up UpdateProfile, avatar *attachment.File) (Profile, error) {
	up.DisplayName = core.CleanStringPtr(up.DisplayName)
	if err := svc.validate.Struct(up); err != nil {
		return Profile{}, err
	}

	p, err := svc.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	old := p.Avatar

	if up.DisplayName != nil {
		p.DisplayName = *up.DisplayName
	}

	switch {
	case avatar != nil:
		f, err := svc.resizeAvatar(*avatar)
		if err != nil {
			return Profile{}, err
		}
		ref, err := svc.files.Upload(ctx, f, "avatars/"+userID, svc.avatarRule())
		if err != nil {
			return Profile{}, err
		}
		p.Avatar = &ref
	case up.RemoveAvatar:
		p.Avatar = nil
	}
	p.UpdatedAt = core.NowFunc()

	var saved Profile
	err = svc.files.Swap(ctx, old, p.Avatar, func(ctx context.Context) error {
		var err error
		saved, err = svc.repo.UpsertProfile(ctx, p)
		return errors.Wrap(err, "saving profile")
	})
	if err != nil {
		return Profile{}, err
	}
	return svc.withURL(saved), nil
}

func (svc *ProfileService) avatarRule() attachment.Rule {
	return attachment.Rule{MaxSize: svc.conf.Uploads.MaxUploadSize, Accept: []string{"image/"}}
}

// resizeAvatar checks the upload then crops it to a square JPEG.
func (svc *ProfileService) resizeAvatar(f attachment.File) (attachment.File, error) {
	f, err := svc.avatarRule().Check(f)
	if err != nil {
		return f, err
	}

	img, err := imaging.Decode(f.Body, imaging.AutoOrientation(true))
	if err != nil {
		return f, &attachment.InvalidFileError{Reason: "not a supported image"}
	}
	img = fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return f, errors.Wrap(err, "encoding avatar")
	}
	return attachment.File{
		Name:     "avatar.jpg",
		MimeType: "image/jpeg",
		Size:     int64(buf.Len()),
		Body:     &buf,
	}, nil
}

func fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= avatarSize && b.Dy() <= avatarSize && b.Dx() == b.Dy() {
		return img
	}
	return imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)
}

func (svc *ProfileService) withURL(p Profile) Profile {
	p.AvatarURL = ""
	if p.Avatar != nil {
		p.AvatarURL = svc.files.PublicURL(p.Avatar.Path)
	}
	return p
}

func (p Profile) String() string {
	return fmt.Sprintf("Profile(%s, %q)", p.UserID, p.DisplayName)
}
