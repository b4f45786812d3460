package inmemdb

import (
	"context"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type userRepository struct {
	users  *table[user.User]
	tokens *table[user.ResetToken]
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{users: db.users, tokens: db.resetTokens}
}

func copyUser(usr user.User) user.User {
	usr.Roles = append([]string{}, usr.Roles...)
	usr.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	return usr
}

func (repo *userRepository) findByEmail(email string) (*row[user.User], bool) {
	for _, r := range repo.users.rows {
		if r.val.Email == email {
			return r, true
		}
	}
	return nil, false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.users.mu.Lock()
	defer repo.users.mu.Unlock()

	if _, ok := repo.findByEmail(usr.Email); ok {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = newID()
	usr = copyUser(usr)
	repo.users.insert(usr.ID, usr)
	return copyUser(usr), nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.users.mu.RLock()
	defer repo.users.mu.RUnlock()

	if r, ok := repo.users.rows[id]; ok {
		return copyUser(r.val), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.users.mu.RLock()
	defer repo.users.mu.RUnlock()

	if r, ok := repo.findByEmail(email); ok {
		return copyUser(r.val), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) EmailExists(_ context.Context, email, excludedID string) (bool, error) {
	repo.users.mu.RLock()
	defer repo.users.mu.RUnlock()

	r, ok := repo.findByEmail(email)
	return ok && r.val.ID != excludedID, nil
}

func hasAnyRole(usr user.User, roles []string) bool {
	for _, want := range roles {
		for _, role := range usr.Roles {
			if role == want {
				return true
			}
		}
	}
	return false
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.users.mu.RLock()
	defer repo.users.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	users := repo.users.sorted(func(usr user.User) bool {
		if search != "" && !strings.Contains(strings.ToLower(usr.Name), search) && !strings.Contains(usr.Email, search) {
			return false
		}
		if len(filter.Roles) > 0 && !hasAnyRole(usr, filter.Roles) {
			return false
		}
		return filter.IsActive == nil || usr.IsActive == *filter.IsActive
	}, func(usr user.User) time.Time { return usr.CreatedAt }, false)

	if len(ordering) > 0 {
		sort.SliceStable(users, func(i, j int) bool {
			for _, ord := range ordering {
				c := compareUsers(users[i], users[j], ord.Field)
				if c == 0 {
					continue
				}
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}
	for i := range users {
		users[i] = copyUser(users[i])
	}
	return users, nil
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "last_login":
		return a.LastLogin.Compare(b.LastLogin)
	}
	return 0
}

func (repo *userRepository) QueryEmailsByRole(_ context.Context, role string) ([]mail.Address, error) {
	repo.users.mu.RLock()
	defer repo.users.mu.RUnlock()

	users := repo.users.sorted(func(usr user.User) bool {
		return usr.IsActive && hasAnyRole(usr, []string{role})
	}, func(usr user.User) time.Time { return usr.CreatedAt }, false)

	addrs := make([]mail.Address, 0, len(users))
	for _, usr := range users {
		addrs = append(addrs, mail.Address{Name: usr.Name, Address: usr.Email})
	}
	return addrs, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.users.mu.Lock()
	defer repo.users.mu.Unlock()

	r, ok := repo.users.rows[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if other, ok := repo.findByEmail(usr.Email); ok && other.val.ID != usr.ID {
		return user.User{}, user.ErrEmailExists
	}
	usr.CreatedAt = r.val.CreatedAt
	r.val = copyUser(usr)
	return copyUser(usr), nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, id string, at time.Time) error {
	repo.users.mu.Lock()
	defer repo.users.mu.Unlock()

	r, ok := repo.users.rows[id]
	if !ok {
		return user.ErrNotFound
	}
	r.val.LastLogin = at
	return nil
}

func (repo *userRepository) CreateResetToken(_ context.Context, token user.ResetToken) error {
	repo.tokens.mu.Lock()
	defer repo.tokens.mu.Unlock()
	repo.tokens.insert(token.Token, token)
	return nil
}

func (repo *userRepository) GetResetToken(_ context.Context, token string) (user.ResetToken, error) {
	repo.tokens.mu.RLock()
	defer repo.tokens.mu.RUnlock()

	if r, ok := repo.tokens.rows[token]; ok {
		return r.val, nil
	}
	return user.ResetToken{}, user.ErrNotFound
}

func (repo *userRepository) ClaimResetToken(_ context.Context, token string, at time.Time) error {
	repo.tokens.mu.Lock()
	defer repo.tokens.mu.Unlock()

	r, ok := repo.tokens.rows[token]
	if !ok || !r.val.Usable(at) {
		return user.ErrNotFound
	}
	r.val.UsedAt = &at
	return nil
}

func (repo *userRepository) DeleteResetTokens(_ context.Context, before time.Time) (int64, error) {
	repo.tokens.mu.Lock()
	defer repo.tokens.mu.Unlock()

	var n int64
	for key, r := range repo.tokens.rows {
		if r.val.UsedAt != nil || r.val.ExpiresAt.Before(before) {
			delete(repo.tokens.rows, key)
			n++
		}
	}
	return n, nil
}

type profileRepository struct {
	profiles *table[user.Profile]
}

var _ user.ProfileRepository = (*profileRepository)(nil)

func NewProfileRepository(db *DB) user.ProfileRepository {
	return &profileRepository{profiles: db.profiles}
}

func (repo *profileRepository) GetProfile(_ context.Context, userID string) (user.Profile, error) {
	repo.profiles.mu.RLock()
	defer repo.profiles.mu.RUnlock()

	if r, ok := repo.profiles.rows[userID]; ok {
		p := r.val
		p.Avatar = copyRef(p.Avatar)
		return p, nil
	}
	return user.Profile{}, user.ErrNotFound
}

func (repo *profileRepository) UpsertProfile(_ context.Context, p user.Profile) (user.Profile, error) {
	repo.profiles.mu.Lock()
	defer repo.profiles.mu.Unlock()

	p.AvatarURL = ""
	p.Avatar = copyRef(p.Avatar)
	if r, ok := repo.profiles.rows[p.UserID]; ok {
		r.val = p
	} else {
		repo.profiles.insert(p.UserID, p)
	}
	return p, nil
}
