// Package attachment keeps the (path, name, type) file reference carried by database rows
// consistent with the objects that exist in the storage bucket.
//
// Storage writes and row writes are independent round-trips: a failure between them can leave an
// orphaned object (row never written) or, on delete, a row whose object is already gone. Callers
// order their calls so that a row never references a path that was not written first.
package attachment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	ErrInvalidFile = errors.New("invalid file")

	nowFunc = time.Now // mockable
)

type (
	// Ref is the attachment triple stored on a row. A nil *Ref means "no file".
	Ref struct {
		Path     string `json:"file_path"`
		Name     string `json:"file_name"`
		MimeType string `json:"file_type"`
	}

	// File is an upload candidate.
	File struct {
		Name     string
		MimeType string // as declared by the client; sniffed when empty or generic
		Size     int64
		Body     io.Reader
	}

	// Store is an object storage bucket.
	Store interface {
		Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error
		Remove(ctx context.Context, paths ...string) error
		PublicURL(path string) string
	}

	// Rule restricts what an upload may be.
	Rule struct {
		MaxSize int64
		Accept  []string // MIME prefixes, eg. "audio/", "image/"; empty accepts anything
	}

	// UploadError wraps any storage-layer rejection.
	UploadError struct {
		Path string
		Err  error
	}

	// InvalidFileError describes why a file was rejected before any storage call.
	InvalidFileError struct {
		Reason string
	}

	Helper struct {
		store  Store
		logger core.Logger
	}
)

func (e *UploadError) Error() string         { return fmt.Sprintf("uploading %s: %v", e.Path, e.Err) }
func (e *UploadError) Unwrap() error         { return e.Err }
func (e *UploadError) StatusMessage() string { return "Upload failed, please try again." }

func (e *InvalidFileError) Error() string         { return "invalid file: " + e.Reason }
func (e *InvalidFileError) Is(target error) bool  { return target == ErrInvalidFile }
func (e *InvalidFileError) StatusMessage() string { return "Invalid file: " + e.Reason + "." }

func invalidFile(format string, args ...interface{}) error {
	return &InvalidFileError{Reason: fmt.Sprintf(format, args...)}
}

func NewHelper(store Store, logger core.Logger) *Helper {
	vala.BeginValidation().Validate(
		vala.IsNotNil(store, "store"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()
	return &Helper{store: store, logger: logger}
}

// Check validates f against rule without touching storage. It may sniff f.Body to detect its MIME
// type; the returned File must be used from then on.
func (rule Rule) Check(f File) (File, error) {
	if f.Body == nil {
		return f, invalidFile("no file provided")
	}
	if rule.MaxSize > 0 && f.Size > rule.MaxSize {
		return f, invalidFile("file is larger than %d MB", rule.MaxSize/core.MB)
	}
	if f.MimeType == "" || f.MimeType == "application/octet-stream" {
		mtype, body, err := Sniff(f.Body)
		if err != nil {
			return f, invalidFile("unreadable file")
		}
		f.MimeType, f.Body = mtype, body
	}
	if len(rule.Accept) > 0 && !HasPrefix(f.MimeType, rule.Accept...) {
		return f, invalidFile("%s files are not accepted", f.MimeType)
	}
	return f, nil
}

// Sniff detects the MIME type of r. The returned reader yields the complete original content.
func Sniff(r io.Reader) (string, io.Reader, error) {
	header := make([]byte, 3072)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	header = header[:n]
	mtype := mimetype.Detect(header).String()
	if i := strings.Index(mtype, ";"); i >= 0 {
		mtype = mtype[:i]
	}
	return mtype, io.MultiReader(bytes.NewReader(header), r), nil
}

// HasPrefix reports whether mimeType falls in any of the given categories.
func HasPrefix(mimeType string, prefixes ...string) bool {
	mimeType = strings.ToLower(mimeType)
	for _, p := range prefixes {
		if strings.HasPrefix(mimeType, p) {
			return true
		}
	}
	return false
}

// NewKey returns a collision-resistant storage key scoped under namespace, keeping the extension of
// the original file name.
func NewKey(namespace, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	ns := strings.Trim(strings.ReplaceAll(namespace, "..", ""), "/")
	if ns == "" {
		ns = "public"
	}
	return fmt.Sprintf("%s/%d-%s%s", ns, nowFunc().UnixNano()/int64(time.Millisecond), uuid.New().String(), ext)
}

// Upload validates f, writes it under namespace and returns its reference.
// Nothing is written when validation fails.
func (h *Helper) Upload(ctx context.Context, f File, namespace string, rule Rule) (Ref, error) {
	f, err := rule.Check(f)
	if err != nil {
		return Ref{}, err
	}

	key := NewKey(namespace, f.Name)
	if err := h.store.Put(ctx, key, f.Body, f.Size, f.MimeType); err != nil {
		return Ref{}, &UploadError{Path: key, Err: err}
	}
	uploadsTotal.WithLabelValues(category(f.MimeType)).Inc()

	name := path.Base(strings.ReplaceAll(f.Name, `\`, "/"))
	if name == "." || name == "/" {
		name = path.Base(key)
	}
	return Ref{Path: key, Name: name, MimeType: f.MimeType}, nil
}

// Replace uploads f, then runs write so the row references the new object, then removes the old
// object (best effort). When write fails the new object is removed instead and the row keeps its
// valid reference.
func (h *Helper) Replace(
	ctx context.Context,
	old *Ref,
	f File,
	namespace string,
	rule Rule,
	write func(ctx context.Context, ref *Ref) error,
) (Ref, error) {
	ref, err := h.Upload(ctx, f, namespace, rule)
	if err != nil {
		return Ref{}, err
	}
	if err := h.Swap(ctx, old, &ref, func(ctx context.Context) error { return write(ctx, &ref) }); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

// Swap runs write, which moves a row from old to next (either may be nil). On success the old object
// is removed; on failure the next one is, so storage never keeps an object only a failed write knew.
func (h *Helper) Swap(ctx context.Context, old, next *Ref, write func(ctx context.Context) error) error {
	if err := write(ctx); err != nil {
		if next != nil && (old == nil || next.Path != old.Path) {
			h.Clear(ctx, next)
		}
		return err
	}
	if old != nil && (next == nil || old.Path != next.Path) {
		h.Clear(ctx, old)
	}
	return nil
}

// Clear deletes the stored object behind ref. Failures are logged and swallowed: the caller still
// nulls the row's triple, possibly leaving an orphaned object behind.
func (h *Helper) Clear(ctx context.Context, ref *Ref) {
	if ref == nil || ref.Path == "" {
		return
	}
	if err := h.store.Remove(ctx, ref.Path); err != nil {
		removeFailuresTotal.Inc()
		h.logger.Warn(fmt.Sprintf("removing stored file %q: %v", ref.Path, err), err)
	}
}

// PublicURL derives the public URL of a stored path. It never calls the network.
func (h *Helper) PublicURL(p string) string {
	if p == "" {
		return ""
	}
	return h.store.PublicURL(p)
}

func category(mimeType string) string {
	if i := strings.Index(mimeType, "/"); i > 0 {
		return mimeType[:i]
	}
	return "other"
}
