package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

// Roles
const (
	// Admin
	RoleAdmin = "admin:"

	// Professor
	RoleProfessor = "professor:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles     = []string{RoleAdmin}
	ProfessorRoles = []string{RoleProfessor}
	StudentRoles   = []string{RoleStudent}
	AllRoles       = getAllRoles()

	rolePriorities = map[string]int{
		RoleAdmin:     30,
		RoleProfessor: 20,
		RoleStudent:   10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Professor", Value: RoleProfessor},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 3)
	all = append(all, AdminRoles...)
	all = append(all, ProfessorRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool     { return u.RoleStartsWith(RoleAdmin) }
func (u *User) IsProfessor() bool { return u.RoleStartsWith(RoleProfessor) }
func (u *User) IsStudent() bool   { return u.RoleStartsWith(RoleStudent) }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required,notblank"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
}

// SignUp is a student self-registration. The email must belong to the institution.
type SignUp struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email,institutional"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (su *SignUp) clean() {
	su.Name = core.CleanString(su.Name)
	su.Email = core.CleanString(su.Email, true /* lower */)
}

type ResetUserPassword struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Token = core.CleanString(rp.Token, true /* lower */)
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// ResetToken is a single-use password reset token.
type ResetToken struct {
	Token     string     // 32 random bytes, hex encoded
	UserID    string
	ExpiresAt time.Time  // UTC
	UsedAt    *time.Time // UTC
	CreatedAt time.Time  // UTC
}

// Usable reports whether the token can still reset a password at now.
func (rt ResetToken) Usable(now time.Time) bool {
	return rt.UsedAt == nil && now.Before(rt.ExpiresAt)
}

// Profile is the public face of a user. It is created on first update.
type Profile struct {
	UserID      string          `json:"user_id"`
	DisplayName string          `json:"display_name"`
	Avatar      *attachment.Ref `json:"-"`
	AvatarURL   string          `json:"avatar_url"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type UpdateProfile struct {
	DisplayName  *string `json:"display_name" form:"display_name" validate:"omitempty,notblank,max=100"`
	RemoveAvatar bool    `json:"remove_avatar" form:"remove_avatar"`
}
