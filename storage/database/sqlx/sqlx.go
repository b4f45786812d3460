// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

// postgres error codes
const (
	codeUniqueViolation   = "23505"
	codeInvalidTextRepr   = "22P02" // eg. malformed uuid
	codeForeignKeyViolate = "23503"
)

func newID() string { return uuid.New().String() }

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// translate maps driver errors onto the core sentinels. A malformed id cannot match any row.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	switch pqCode(err) {
	case codeInvalidTextRepr, codeForeignKeyViolate:
		return core.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func checkAffected(res sql.Result, err error, msg string) error {
	if err != nil {
		return translate(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// fileCols is the attachment triple; the three columns are always written together.
type fileCols struct {
	FilePath null.String `db:"file_path"`
	FileName null.String `db:"file_name"`
	FileType null.String `db:"file_type"`
}

func fileColsOf(ref *attachment.Ref) fileCols {
	if ref == nil {
		return fileCols{}
	}
	return fileCols{
		FilePath: null.StringFrom(ref.Path),
		FileName: null.StringFrom(ref.Name),
		FileType: null.StringFrom(ref.MimeType),
	}
}

func (f fileCols) ref() *attachment.Ref {
	if !f.FilePath.Valid {
		return nil
	}
	return &attachment.Ref{Path: f.FilePath.String, Name: f.FileName.String, MimeType: f.FileType.String}
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t, !t.IsZero())
}

func nullID(id string) null.String {
	return null.NewString(id, id != "")
}

// orderBy renders ordering restricted to the allowed columns. Nulls sort like the zero value.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, fallback string) string {
	parts := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if !allowed[ord.Field] {
			continue
		}
		nulls := " NULLS LAST"
		if ord.Ascending {
			nulls = " NULLS FIRST"
		}
		parts = append(parts, ord.String()+nulls)
	}
	if len(parts) == 0 {
		parts = append(parts, fallback)
	}
	return strings.Join(append(parts, "id ASC"), ", ")
}

// escapeLike escapes the LIKE wildcards of s.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
