package attachment_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/testutil"
)

var pdfHeader = "%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"

func newHelper() (*attachment.Helper, *testutil.MemStore, *testutil.Logger) {
	store := testutil.NewMemStore()
	logger := testutil.NewLogger()
	return attachment.NewHelper(store, logger), store, logger
}

func Test_Helper_Upload(t *testing.T) {
	ctx := context.Background()
	rule := attachment.Rule{MaxSize: 10 * core.MB}

	tests := []struct {
		name      string
		file      attachment.File
		rule      attachment.Rule
		failPut   bool
		wantErr   error
		wantType  string
		wantPuts  int
		wantStore bool
	}{
		{
			name:    "no body",
			file:    attachment.File{Name: "a.pdf", Size: 10},
			rule:    rule,
			wantErr: attachment.ErrInvalidFile,
		},
		{
			name:    "oversize is rejected before storage",
			file:    attachment.File{Name: "big.pdf", MimeType: "application/pdf", Size: 10*core.MB + 1, Body: strings.NewReader("x")},
			rule:    rule,
			wantErr: attachment.ErrInvalidFile,
		},
		{
			name:    "wrong category",
			file:    attachment.File{Name: "readings.pdf", MimeType: "application/pdf", Size: 5, Body: strings.NewReader("x")},
			rule:    attachment.Rule{MaxSize: core.MB, Accept: []string{"audio/"}},
			wantErr: attachment.ErrInvalidFile,
		},
		{
			name:      "declared type kept",
			file:      attachment.File{Name: "readings.pdf", MimeType: "application/pdf", Size: 5, Body: strings.NewReader("hello")},
			rule:      rule,
			wantType:  "application/pdf",
			wantPuts:  1,
			wantStore: true,
		},
		{
			name:      "type sniffed when missing",
			file:      attachment.File{Name: "readings.pdf", Size: int64(len(pdfHeader)), Body: strings.NewReader(pdfHeader)},
			rule:      rule,
			wantType:  "application/pdf",
			wantPuts:  1,
			wantStore: true,
		},
		{
			name:     "storage failure",
			file:     attachment.File{Name: "readings.pdf", MimeType: "application/pdf", Size: 5, Body: strings.NewReader("hello")},
			rule:     rule,
			failPut:  true,
			wantPuts: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store, _ := newHelper()
			store.FailPut = tt.failPut

			ref, err := h.Upload(ctx, tt.file, "announcements/u1", tt.rule)
			puts, _ := store.Calls()
			assert.Equal(t, tt.wantPuts, puts)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, attachment.Ref{}, ref)
			case tt.failPut:
				var upErr *attachment.UploadError
				require.ErrorAs(t, err, &upErr)
				assert.Equal(t, "Upload failed, please try again.", core.StatusMessage(err))
				assert.Empty(t, store.Keys())
			default:
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(ref.Path, "announcements/u1/"), ref.Path)
				assert.True(t, strings.HasSuffix(ref.Path, ".pdf"), ref.Path)
				assert.Equal(t, tt.file.Name, ref.Name)
				assert.Equal(t, tt.wantType, ref.MimeType)
				assert.Equal(t, tt.wantStore, store.Has(ref.Path))
			}
		})
	}
}

func Test_NewKey(t *testing.T) {
	k1 := attachment.NewKey("messages/u1", "voice.WEBM")
	k2 := attachment.NewKey("messages/u1", "voice.WEBM")
	assert.NotEqual(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "messages/u1/"))
	assert.True(t, strings.HasSuffix(k1, ".webm"))

	assert.True(t, strings.HasPrefix(attachment.NewKey("", "x"), "public/"))
	assert.False(t, strings.Contains(attachment.NewKey("../../etc", "passwd"), ".."))
}

func Test_Helper_Replace(t *testing.T) {
	ctx := context.Background()
	rule := attachment.Rule{MaxSize: core.MB}
	newFile := func(name, body string) attachment.File {
		return attachment.File{Name: name, MimeType: "text/plain", Size: int64(len(body)), Body: strings.NewReader(body)}
	}
	errDB := errors.New("db down")

	t.Run("upload, write, then delete old", func(t *testing.T) {
		h, store, _ := newHelper()
		old, err := h.Upload(ctx, newFile("old.txt", "old"), "a", rule)
		require.NoError(t, err)

		var written *attachment.Ref
		ref, err := h.Replace(ctx, &old, newFile("new.txt", "new"), "a", rule, func(_ context.Context, r *attachment.Ref) error {
			// the old object still exists while the row is written
			assert.True(t, store.Has(old.Path))
			written = r
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, &ref, written)
		assert.True(t, store.Has(ref.Path))
		assert.False(t, store.Has(old.Path))
	})

	t.Run("failed upload keeps old object and skips write", func(t *testing.T) {
		h, store, _ := newHelper()
		old, err := h.Upload(ctx, newFile("old.txt", "old"), "a", rule)
		require.NoError(t, err)

		store.FailPut = true
		called := false
		_, err = h.Replace(ctx, &old, newFile("new.txt", "new"), "a", rule, func(context.Context, *attachment.Ref) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, called)
		assert.True(t, store.Has(old.Path))
		_, removes := store.Calls()
		assert.Zero(t, removes)
	})

	t.Run("failed write removes the new object", func(t *testing.T) {
		h, store, _ := newHelper()
		old, err := h.Upload(ctx, newFile("old.txt", "old"), "a", rule)
		require.NoError(t, err)

		_, err = h.Replace(ctx, &old, newFile("new.txt", "new"), "a", rule, func(context.Context, *attachment.Ref) error {
			return errDB
		})
		assert.ErrorIs(t, err, errDB)
		assert.Equal(t, []string{old.Path}, store.Keys())
	})

	t.Run("nothing to replace", func(t *testing.T) {
		h, store, _ := newHelper()
		ref, err := h.Replace(ctx, nil, newFile("new.txt", "new"), "a", rule, func(context.Context, *attachment.Ref) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, []string{ref.Path}, store.Keys())
	})
}

func Test_Helper_Swap(t *testing.T) {
	ctx := context.Background()
	old := &attachment.Ref{Path: "a/old.txt", Name: "old.txt", MimeType: "text/plain"}

	t.Run("clear on success", func(t *testing.T) {
		h, store, _ := newHelper()
		store.Objects[old.Path] = []byte("old")
		require.NoError(t, h.Swap(ctx, old, nil, func(context.Context) error { return nil }))
		assert.Empty(t, store.Keys())
	})

	t.Run("keep on failure", func(t *testing.T) {
		h, store, _ := newHelper()
		store.Objects[old.Path] = []byte("old")
		require.Error(t, h.Swap(ctx, old, nil, func(context.Context) error { return errors.New("db down") }))
		assert.Equal(t, []string{old.Path}, store.Keys())
	})

	t.Run("same reference is kept", func(t *testing.T) {
		h, store, _ := newHelper()
		store.Objects[old.Path] = []byte("old")
		require.NoError(t, h.Swap(ctx, old, old, func(context.Context) error { return nil }))
		assert.Equal(t, []string{old.Path}, store.Keys())
	})
}

func Test_Helper_Clear(t *testing.T) {
	ctx := context.Background()

	t.Run("nil ref", func(t *testing.T) {
		h, store, _ := newHelper()
		h.Clear(ctx, nil)
		_, removes := store.Calls()
		assert.Zero(t, removes)
	})

	t.Run("failure is logged, not returned", func(t *testing.T) {
		h, store, logger := newHelper()
		store.FailRemove = true
		h.Clear(ctx, &attachment.Ref{Path: "a/b.txt", Name: "b.txt", MimeType: "text/plain"})
		assert.Equal(t, 1, logger.Count("warn"))
	})
}

func Test_Helper_PublicURL(t *testing.T) {
	h, _, _ := newHelper()
	assert.Equal(t, "", h.PublicURL(""))
	assert.Equal(t, "https://cdn.test/a/b.mp3", h.PublicURL("a/b.mp3"))
	assert.Equal(t, h.PublicURL("a/b.mp3"), h.PublicURL("a/b.mp3"))
}

func Test_InvalidFileError(t *testing.T) {
	err := error(&attachment.InvalidFileError{Reason: "too big"})
	assert.True(t, errors.Is(err, attachment.ErrInvalidFile))
	assert.Equal(t, "Invalid file: too big.", core.StatusMessage(err))
}
