package echoapi

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// formFile opens the multipart file under field. A request without that file yields a nil File;
// done must be called once the file has been consumed.
func formFile(ctx echo.Context, field string) (file *attachment.File, done func(), err error) {
	done = func() {}
	fh, err := ctx.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return nil, done, nil
		}
		return nil, done, echo.NewHTTPError(http.StatusBadRequest, "malformed multipart form").SetInternal(err)
	}
	return openFormFile(fh)
}

func openFormFile(fh *multipart.FileHeader) (*attachment.File, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "opening form file")
	}
	return &attachment.File{
		Name:     fh.Filename,
		MimeType: fh.Header.Get(echo.HeaderContentType),
		Size:     fh.Size,
		Body:     f,
	}, func() { _ = f.Close() }, nil
}
