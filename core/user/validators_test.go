package user_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/testutil"
)

func TestValidatePassword(t *testing.T) {
	user.LoadCommonPasswords(core.NewTestConfig(), testutil.NewLogger())

	tests := []struct {
		name    string
		pwd     string
		attrs   []string
		wantErr string
	}{
		{name: "too short", pwd: "Ab1!", wantErr: "password must contain at least 8 characters"},
		{name: "whitespace", pwd: "Abcd 123!", wantErr: "password must not contain whitespace"},
		{name: "all numeric", pwd: "1234567890", wantErr: "password cannot be entirely numeric"},
		{name: "no special character", pwd: "Abcdefg123", wantErr: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		{name: "similar to the name", pwd: "Marie-Curie1", attrs: []string{"Marie Curie"}, wantErr: "password cannot be similar to user attributes"},
		{name: "similar to the email local part", pwd: "Mcurie#2024", attrs: []string{"mcurie2024@uni.test"}, wantErr: "password cannot be similar to user attributes"},
		{name: "common", pwd: "P@ssw0rd", wantErr: "password is too common"},
		{name: "valid", pwd: "Tr0ub4dor&3x", attrs: []string{"Marie Curie", "marie@uni.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := user.ValidatePassword(tt.pwd, tt.attrs...)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, "password: "+tt.wantErr)
		})
	}
}

func TestUser_Roles(t *testing.T) {
	usr := user.User{Roles: []string{user.RoleProfessor, user.RoleStudent}}
	assert.True(t, usr.IsProfessor())
	assert.True(t, usr.IsStudent())
	assert.False(t, usr.IsAdmin())
	assert.Equal(t, 20, user.MaxRolePriority(usr.Roles))
}
