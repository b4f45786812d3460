package storagesvc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/attachment"
)

// LocalStore keeps objects under a directory served at baseURL.
type LocalStore struct {
	root    string
	baseURL string
}

var _ attachment.Store = (*LocalStore)(nil)

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage root")
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory holding the objects.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) fullPath(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", errors.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes body to a temp file next to the destination, then renames it so readers never see a
// partial object.
func (s *LocalStore) Put(ctx context.Context, path string, body io.Reader, size int64, _ string) error {
	dst, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, "creating object directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "writing object")
	}
	if size >= 0 && n != size {
		return errors.Errorf("short write: %d of %d bytes", n, size)
	}
	return errors.Wrap(os.Rename(tmp.Name(), dst), "moving object")
}

// Remove deletes the objects. Missing objects are not an error.
func (s *LocalStore) Remove(_ context.Context, paths ...string) error {
	for _, path := range paths {
		fp, err := s.fullPath(path)
		if err != nil {
			return err
		}
		if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "removing object")
		}
	}
	return nil
}

func (s *LocalStore) PublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}
