// Package inmemdb implements every repository in process memory. Rows are copied in and out so
// callers never share state with the store.
package inmemdb

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/contribution"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
)

type (
	row[T any] struct {
		seq int64
		val T
	}

	table[T any] struct {
		mu   sync.RWMutex
		seq  int64
		rows map[string]*row[T]
	}

	DB struct {
		users         *table[user.User]
		resetTokens   *table[user.ResetToken]
		profiles      *table[user.Profile]
		announcements *table[announcement.Announcement]
		messages      *table[message.Message]
		contributions *table[contribution.Contribution]
	}
)

func NewDB() *DB {
	return &DB{
		users:         newTable[user.User](),
		resetTokens:   newTable[user.ResetToken](),
		profiles:      newTable[user.Profile](),
		announcements: newTable[announcement.Announcement](),
		messages:      newTable[message.Message](),
		contributions: newTable[contribution.Contribution](),
	}
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]*row[T])}
}

func newID() string { return uuid.New().String() }

func copyRef(ref *attachment.Ref) *attachment.Ref {
	if ref == nil {
		return nil
	}
	cp := *ref
	return &cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// insert must be called with the lock held.
func (t *table[T]) insert(id string, val T) {
	t.seq++
	t.rows[id] = &row[T]{seq: t.seq, val: val}
}

// sorted returns the rows matching keep, ordered by createdAt then insertion order. It must be
// called with the lock held.
func (t *table[T]) sorted(keep func(T) bool, createdAt func(T) time.Time, newestFirst bool) []T {
	rows := make([]*row[T], 0, len(t.rows))
	for _, r := range t.rows {
		if keep == nil || keep(r.val) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		ti, tj := createdAt(rows[i].val), createdAt(rows[j].val)
		less := ti.Before(tj) || (ti.Equal(tj) && rows[i].seq < rows[j].seq)
		if newestFirst {
			return !less
		}
		return less
	})
	vals := make([]T, 0, len(rows))
	for _, r := range rows {
		vals = append(vals, r.val)
	}
	return vals
}
