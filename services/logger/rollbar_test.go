package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

func TestNewRollbarLogger_component(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "API : ", want: "API"},
		{prefix: "ADMIN : ", want: "ADMIN"},
		{prefix: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			l := NewRollbarLogger(log.New(new(bytes.Buffer), tt.prefix, 0), core.NewTestConfig())
			assert.Equal(t, tt.want, l.component)
		})
	}
}

func TestRollbarLogger_prepare(t *testing.T) {
	l := NewRollbarLogger(log.New(new(bytes.Buffer), "API : ", 0), core.NewTestConfig())
	l.Enable(false)

	errBoom := errors.New("boom")
	usr := user.User{ID: "u1", Name: "Ann", Email: "ann@test.com"}

	tests := []struct {
		name string
		args []interface{}
		want []interface{}
	}{
		{
			name: "users are not reported as args",
			args: []interface{}{errBoom, usr, &usr},
			want: []interface{}{"failed", errBoom, map[string]interface{}{"component": "API"}},
		},
		{
			name: "extras get the component",
			args: []interface{}{errBoom, map[string]interface{}{"announcement_id": "a1"}},
			want: []interface{}{"failed", errBoom, map[string]interface{}{"announcement_id": "a1", "component": "API"}},
		},
		{
			name: "nil user pointer",
			args: []interface{}{(*user.User)(nil)},
			want: []interface{}{"failed", map[string]interface{}{"component": "API"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.prepare("failed", tt.args))
		})
	}

	t.Run("caller extras are not modified", func(t *testing.T) {
		extras := map[string]interface{}{"path": "audio/u1/a.wav"}
		l.prepare("failed", []interface{}{extras})
		assert.Equal(t, map[string]interface{}{"path": "audio/u1/a.wav"}, extras)
	})
}

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewRollbarLogger(log.New(buf, "", 0), core.NewTestConfig())
	l.Enable(false)

	l.Warn("object removal failed", errors.New("timeout"))
	assert.Equal(t, "object removal failed\ntimeout\n", buf.String())
}
