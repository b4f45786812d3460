package user_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/user"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/testutil"
)

func pngFile(t *testing.T, w, h int) *attachment.File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &attachment.File{Name: "me.png", MimeType: "image/png", Size: int64(buf.Len()), Body: &buf}
}

func newProfileService(t *testing.T) (*user.ProfileService, user.Repository, *testutil.MemStore) {
	t.Helper()
	conf := core.NewTestConfig()
	db := inmemdb.NewDB()
	users := inmemdb.NewUserRepository(db)
	store := testutil.NewMemStore()
	logger := testutil.NewLogger()
	svc := user.NewProfileService(
		inmemdb.NewProfileRepository(db),
		users,
		attachment.NewHelper(store, logger),
		conf,
		testutil.NewValidator(conf),
		logger,
	)
	return svc, users, store
}

func TestProfileService(t *testing.T) {
	ctx := context.Background()
	svc, users, store := newProfileService(t)
	usr := testutil.CreateUser(t, users, "Ann Student", "ann@uni.test", "", []string{user.RoleStudent}, true)

	t.Run("defaults before the first update", func(t *testing.T) {
		p, err := svc.Get(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ann Student", p.DisplayName)
		assert.Empty(t, p.AvatarURL)

		_, err = svc.Get(ctx, "missing")
		assert.ErrorIs(t, err, user.ErrNotFound)
	})

	var firstAvatar string
	t.Run("avatar is fitted to a square jpeg", func(t *testing.T) {
		name := "Ann"
		p, err := svc.Update(ctx, usr.ID, user.UpdateProfile{DisplayName: &name}, pngFile(t, 800, 600))
		require.NoError(t, err)
		assert.Equal(t, "Ann", p.DisplayName)
		require.NotNil(t, p.Avatar)
		assert.True(t, strings.HasPrefix(p.Avatar.Path, "avatars/"+usr.ID+"/"))
		assert.Equal(t, "image/jpeg", p.Avatar.MimeType)
		assert.Equal(t, "https://cdn.test/"+p.Avatar.Path, p.AvatarURL)

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(store.Objects[p.Avatar.Path]))
		require.NoError(t, err)
		assert.Equal(t, 512, cfg.Width)
		assert.Equal(t, 512, cfg.Height)
		firstAvatar = p.Avatar.Path
	})

	t.Run("new avatar replaces the old one", func(t *testing.T) {
		p, err := svc.Update(ctx, usr.ID, user.UpdateProfile{}, pngFile(t, 64, 64))
		require.NoError(t, err)
		assert.Equal(t, "Ann", p.DisplayName, "unchanged when not given")
		assert.NotEqual(t, firstAvatar, p.Avatar.Path)
		assert.Equal(t, []string{p.Avatar.Path}, store.Keys())
	})

	t.Run("rejected files", func(t *testing.T) {
		before := store.Keys()
		garbage := &attachment.File{Name: "me.png", MimeType: "image/png", Size: 4, Body: strings.NewReader("nope")}
		_, err := svc.Update(ctx, usr.ID, user.UpdateProfile{}, garbage)
		assert.ErrorIs(t, err, attachment.ErrInvalidFile)

		pdf := &attachment.File{Name: "cv.pdf", MimeType: "application/pdf", Size: 4, Body: strings.NewReader("%PDF")}
		_, err = svc.Update(ctx, usr.ID, user.UpdateProfile{}, pdf)
		assert.ErrorIs(t, err, attachment.ErrInvalidFile)

		blank := "  "
		_, err = svc.Update(ctx, usr.ID, user.UpdateProfile{DisplayName: &blank}, nil)
		assert.NoError(t, err, "blank names are ignored")
		assert.Equal(t, before, store.Keys())
	})

	t.Run("remove avatar", func(t *testing.T) {
		p, err := svc.Update(ctx, usr.ID, user.UpdateProfile{RemoveAvatar: true}, nil)
		require.NoError(t, err)
		assert.Nil(t, p.Avatar)
		assert.Empty(t, p.AvatarURL)
		assert.Empty(t, store.Keys())
	})
}
