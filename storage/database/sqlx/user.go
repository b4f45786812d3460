package sqlxrepos

import (
	"context"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const userColumns = "id, name, email, is_active, roles, password_hash, created_at, updated_at, last_login"

var userOrderings = map[string]bool{"name": true, "email": true, "created_at": true, "last_login": true}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	hash := usr.PasswordHash
	if hash == nil {
		hash = []byte{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: hash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    nullTime(usr.LastLogin),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type tokenRow struct {
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	UsedAt    null.Time `db:"used_at"`
	CreatedAt time.Time `db:"created_at"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func emailTaken(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	q := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :name, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, toUserRow(usr)); err != nil {
		if emailTaken(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE "+where, arg); err != nil {
		return user.User{}, translate(err, "selecting user")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, "id = $1", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = $1", email)
}

func (repo *userRepository) EmailExists(ctx context.Context, email, excludedID string) (bool, error) {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id::text <> $2)"
	if err := repo.db.GetContext(ctx, &exists, q, email, excludedID); err != nil {
		return false, errors.Wrap(err, "checking email")
	}
	return exists, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	bind := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Search != "" {
		p := bind("%" + escapeLike(filter.Search) + "%")
		conds = append(conds, "(name ILIKE "+p+" OR email ILIKE "+p+")")
	}
	if len(filter.Roles) > 0 {
		conds = append(conds, "roles && "+bind(pq.StringArray(filter.Roles)))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+bind(*filter.IsActive))
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering, userOrderings, "created_at ASC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) QueryEmailsByRole(ctx context.Context, role string) ([]mail.Address, error) {
	var rows []struct {
		Name  string `db:"name"`
		Email string `db:"email"`
	}
	q := "SELECT name, email FROM users WHERE is_active AND $1 = ANY (roles) ORDER BY created_at, id"
	if err := repo.db.SelectContext(ctx, &rows, q, role); err != nil {
		return nil, errors.Wrap(err, "selecting emails")
	}
	addrs := make([]mail.Address, 0, len(rows))
	for _, r := range rows {
		addrs = append(addrs, mail.Address{Name: r.Name, Address: r.Email})
	}
	return addrs, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q, args, err := repo.db.BindNamed(`UPDATE users SET
			name = :name, email = :email, is_active = :is_active, roles = :roles,
			password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id
		RETURNING `+userColumns, toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "binding user")
	}
	var row userRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if emailTaken(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, translate(err, "updating user")
	}
	return row.user(), nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE users SET last_login = $2 WHERE id = $1", id, at)
	return checkAffected(res, err, "updating last login")
}

func (repo *userRepository) CreateResetToken(ctx context.Context, token user.ResetToken) error {
	q := `INSERT INTO password_reset_tokens (token, user_id, expires_at, used_at, created_at)
		VALUES (:token, :user_id, :expires_at, :used_at, :created_at)`
	row := tokenRow{
		Token:     token.Token,
		UserID:    token.UserID,
		ExpiresAt: token.ExpiresAt,
		UsedAt:    null.TimeFromPtr(token.UsedAt),
		CreatedAt: token.CreatedAt,
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return translate(err, "inserting reset token")
	}
	return nil
}

func (repo *userRepository) GetResetToken(ctx context.Context, token string) (user.ResetToken, error) {
	var row tokenRow
	q := "SELECT token, user_id, expires_at, used_at, created_at FROM password_reset_tokens WHERE token = $1"
	if err := repo.db.GetContext(ctx, &row, q, token); err != nil {
		return user.ResetToken{}, translate(err, "selecting reset token")
	}
	rt := user.ResetToken{
		Token:     row.Token,
		UserID:    row.UserID,
		ExpiresAt: row.ExpiresAt.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
	}
	if row.UsedAt.Valid {
		usedAt := row.UsedAt.Time.UTC()
		rt.UsedAt = &usedAt
	}
	return rt, nil
}

func (repo *userRepository) ClaimResetToken(ctx context.Context, token string, at time.Time) error {
	res, err := repo.db.ExecContext(
		ctx,
		"UPDATE password_reset_tokens SET used_at = $2 WHERE token = $1 AND used_at IS NULL AND expires_at > $2",
		token, at,
	)
	return checkAffected(res, err, "claiming reset token")
}

func (repo *userRepository) DeleteResetTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE used_at IS NOT NULL OR expires_at < $1", before)
	if err != nil {
		return 0, errors.Wrap(err, "deleting reset tokens")
	}
	return res.RowsAffected()
}

// profiles

type profileRow struct {
	UserID      string      `db:"user_id"`
	DisplayName string      `db:"display_name"`
	AvatarPath  null.String `db:"avatar_path"`
	AvatarName  null.String `db:"avatar_name"`
	AvatarType  null.String `db:"avatar_type"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r profileRow) profile() user.Profile {
	p := user.Profile{UserID: r.UserID, DisplayName: r.DisplayName, UpdatedAt: r.UpdatedAt.UTC()}
	p.Avatar = fileCols{FilePath: r.AvatarPath, FileName: r.AvatarName, FileType: r.AvatarType}.ref()
	return p
}

type profileRepository struct {
	db *sqlx.DB
}

var _ user.ProfileRepository = (*profileRepository)(nil)

func NewProfileRepository(db *sqlx.DB) user.ProfileRepository {
	return &profileRepository{db: db}
}

const profileColumns = "user_id, display_name, avatar_path, avatar_name, avatar_type, updated_at"

func (repo *profileRepository) GetProfile(ctx context.Context, userID string) (user.Profile, error) {
	var row profileRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID); err != nil {
		return user.Profile{}, translate(err, "selecting profile")
	}
	return row.profile(), nil
}

func (repo *profileRepository) UpsertProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	cols := fileColsOf(p.Avatar)
	row := profileRow{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		AvatarPath:  cols.FilePath,
		AvatarName:  cols.FileName,
		AvatarType:  cols.FileType,
		UpdatedAt:   p.UpdatedAt,
	}
	q, args, err := repo.db.BindNamed(`INSERT INTO profiles (`+profileColumns+`)
		VALUES (:user_id, :display_name, :avatar_path, :avatar_name, :avatar_type, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_path = EXCLUDED.avatar_path,
			avatar_name = EXCLUDED.avatar_name,
			avatar_type = EXCLUDED.avatar_type,
			updated_at = EXCLUDED.updated_at
		RETURNING `+profileColumns, row)
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "binding profile")
	}
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return user.Profile{}, translate(err, "upserting profile")
	}
	return row.profile(), nil
}
