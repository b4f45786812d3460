// Package listctl mirrors a server-side ordered collection into memory and patches it after every
// successful mutation, without reloading.
package listctl

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

// Order tells where created entries go.
type Order int

const (
	NewestFirst   Order = iota // created entries are prepended
	Chronological              // created entries are appended
)

var ErrCancelled = errors.New("cancelled by user")

type (
	// Confirmer asks the user a blocking yes/no question.
	Confirmer interface {
		Confirm(ctx context.Context, prompt string) (bool, error)
	}

	ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

	// List holds the in-memory copy of one collection. It is safe for concurrent use; mutations are
	// applied in the order their calls complete.
	List[T any] struct {
		mu      sync.RWMutex
		items   []T
		status  string
		order   Order
		idOf    func(T) string
		confirm Confirmer
		logger  core.Logger
	}
)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// AlwaysConfirm answers yes to every prompt.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

func New[T any](order Order, idOf func(T) string, confirm Confirmer, logger core.Logger) *List[T] {
	return &List[T]{order: order, idOf: idOf, confirm: confirm, logger: logger}
}

// Load replaces the local entries with what fetch returns.
func (l *List[T]) Load(ctx context.Context, fetch func(context.Context) ([]T, error)) error {
	items, err := fetch(ctx)
	if err != nil {
		return l.fail("loading", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append([]T(nil), items...)
	l.status = ""
	return nil
}

// Create runs create and inserts the returned entry at the head (NewestFirst) or tail (Chronological).
func (l *List[T]) Create(ctx context.Context, create func(context.Context) (T, error), status string) (T, error) {
	item, err := create(ctx)
	if err != nil {
		return item, l.fail("creating", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.order == NewestFirst {
		l.items = append([]T{item}, l.items...)
	} else {
		l.items = append(l.items, item)
	}
	l.status = status
	return item, nil
}

// Update runs update and replaces the matching entry in place.
func (l *List[T]) Update(ctx context.Context, id string, update func(context.Context) (T, error), status string) (T, error) {
	item, err := update(ctx)
	if err != nil {
		return item, l.fail("updating", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.idOf(l.items[i]) == id {
			l.items[i] = item
			break
		}
	}
	l.status = status
	return item, nil
}

// Delete asks for confirmation, runs remove, then drops the entry locally. Nothing is removed when
// the user declines. Removing an entry that is already gone locally is a no-op.
func (l *List[T]) Delete(ctx context.Context, id, prompt string, remove func(context.Context) error, status string) error {
	ok, err := l.confirm.Confirm(ctx, prompt)
	if err != nil {
		return l.fail("confirming", err)
	}
	if !ok {
		return ErrCancelled
	}

	if err := remove(ctx); err != nil {
		return l.fail("deleting", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.idOf(l.items[i]) == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			break
		}
	}
	l.status = status
	return nil
}

// Items returns a copy of the local entries.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]T(nil), l.items...)
}

// Get returns the local entry with id.
func (l *List[T]) Get(id string) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if l.idOf(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Status is the inline message describing the outcome of the last operation.
func (l *List[T]) Status() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

func (l *List[T]) fail(op string, err error) error {
	if !isUserError(err) {
		l.logger.Error(op+": "+err.Error(), err)
	}
	l.mu.Lock()
	l.status = core.StatusMessage(err)
	l.mu.Unlock()
	return err
}

// isUserError reports errors caused by user input; they are shown but not logged.
func isUserError(err error) bool {
	var (
		vErr  *core.ValidationError
		fErrs validator.ValidationErrors
	)
	return errors.As(err, &vErr) || errors.As(err, &fErrs) ||
		errors.Is(err, attachment.ErrInvalidFile) || errors.Is(err, core.ErrPermissionDenied)
}
