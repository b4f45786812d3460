package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound          = core.ErrNotFound
	ErrEmailExists       = errors.New("a user with this email already exists")
	ErrInvalidResetToken = errors.Wrap(core.ErrNotFound, "invalid or expired password reset token")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// EmailExists reports whether another user than excludedID already uses email.
		EmailExists(ctx context.Context, email, excludedID string) (bool, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		// QueryEmailsByRole returns the addresses of active users holding role.
		QueryEmailsByRole(ctx context.Context, role string) ([]mail.Address, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, id string, at time.Time) error

		CreateResetToken(ctx context.Context, token ResetToken) error
		GetResetToken(ctx context.Context, token string) (ResetToken, error)
		// ClaimResetToken marks a usable token as used. It returns ErrNotFound when the token
		// is unknown, expired or already claimed.
		ClaimResetToken(ctx context.Context, token string, at time.Time) error
		// DeleteResetTokens removes tokens that expired before `before` or were already used.
		DeleteResetTokens(ctx context.Context, before time.Time) (int64, error)
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		conf     *core.Config
		validate *validator.Validate
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, validate *validator.Validate) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(validate, "validate"),
	).CheckAndPanic()
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf, validate: validate}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, excludedID string) error {
	exists, err := svc.repo.EmailExists(ctx, email, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Email, ""); err != nil {
		return User{}, err
	}
	return svc.create(ctx, nu.Name, nu.Email, nu.Password, nu.Roles)
}

// SignUp registers a student account.
func (svc *Service) SignUp(ctx context.Context, su SignUp) (User, error) {
	su.clean()
	if err := svc.validate.Struct(su); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, su.Email, ""); err != nil {
		return User{}, err
	}
	return svc.create(ctx, su.Name, su.Email, su.Password, []string{RoleStudent})
}

func (svc *Service) create(ctx context.Context, name, email, pwd string, roles []string) (User, error) {
	now := core.NowFunc()
	usr := User{
		Name:      name,
		Email:     email,
		IsActive:  true,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// AddOrUpdate creates the user behind email or updates its name, roles and password. It skips the
// password policy and is meant for operators.
func (svc *Service) AddOrUpdate(ctx context.Context, name, email, pwd string, roles []string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	usr, err := svc.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return User{}, err
		}
		if name == "" {
			name = email
		}
		return svc.create(ctx, name, email, pwd, roles)
	}

	if name != "" {
		usr.Name = name
	}
	if roles != nil {
		usr.Roles = roles
	}
	usr.IsActive = true
	usr.UpdatedAt = core.NowFunc()
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, ordering...)
}

// EmailsByRole returns the addresses of the active users holding role.
func (svc *Service) EmailsByRole(ctx context.Context, role string) ([]mail.Address, error) {
	return svc.repo.QueryEmailsByRole(ctx, role)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := core.NowFunc()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = now
	return usr, nil
}

// SetPassword replaces the password of the user behind email, skipping the password policy.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.NowFunc()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// RequestPasswordReset issues a single-use reset token and emails the reset link. Unknown and
// inactive accounts get ErrNotFound, which callers must not reveal.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	token, err := newResetToken(usr.ID, svc.conf.PasswordResetTimeout)
	if err != nil {
		return errors.Wrap(err, "generating reset token")
	}
	if err := svc.repo.CreateResetToken(ctx, token); err != nil {
		return errors.Wrap(err, "saving reset token")
	}

	svc.mailSvc.SendMessages(svc.passwordResetMail(usr, token))
	return nil
}

func (svc *Service) passwordResetMail(usr User, token ResetToken) *core.EmailMessage {
	resetURL := svc.conf.FrontendBaseURL + "/password-reset/confirm?token=" + url.QueryEscape(token.Token)
	msg := core.NewEmailMessage(svc.conf, "Password Reset", "password_reset", map[string]interface{}{
		"Name":      usr.Name,
		"ResetURL":  resetURL,
		"ExpiresIn": svc.conf.PasswordResetTimeout.String(),
	})
	msg.To = []mail.Address{{Name: usr.Name, Address: usr.Email}}
	return msg
}

// ResetPassword sets a new password if the token exists, is unused and has not expired. The token
// is then marked used.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	if err := data.Validate(svc.validate); err != nil {
		return err
	}

	invalidToken := core.NewValidationError(ErrInvalidResetToken, core.FieldError{Field: "token", Error: "invalid or expired token"})
	token, err := svc.repo.GetResetToken(ctx, data.Token)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidToken
		}
		return errors.Wrap(err, "getting reset token")
	}
	now := core.NowFunc()
	if !token.Usable(now) {
		return invalidToken
	}

	usr, err := svc.repo.GetUserByID(ctx, token.UserID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidToken
		}
		return errors.Wrap(err, "getting token user")
	}
	if err := ValidatePassword(data.Password, usr.Name, usr.Email); err != nil {
		return err
	}
	if err := usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}

	// only one confirm can win the token
	if err := svc.repo.ClaimResetToken(ctx, token.Token, now); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidToken
		}
		return errors.Wrap(err, "claiming reset token")
	}
	usr.UpdatedAt = now
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

// PurgeExpiredTokens deletes expired and used reset tokens.
func (svc *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := svc.repo.DeleteResetTokens(ctx, core.NowFunc())
	return n, errors.Wrap(err, "deleting reset tokens")
}

func newResetToken(userID string, ttl time.Duration) (ResetToken, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return ResetToken{}, err
	}
	now := core.NowFunc()
	return ResetToken{
		Token:     hex.EncodeToString(b),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

func (rt ResetToken) String() string {
	return fmt.Sprintf("ResetToken(user=%s, expires=%s)", rt.UserID, rt.ExpiresAt.Format(time.RFC3339))
}
