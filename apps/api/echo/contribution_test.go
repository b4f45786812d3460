package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/contribution"
	"github.com/trezcool/darasa/testutil"
)

func (app *testApp) postContribution(t *testing.T, tkn string, fields map[string]string, files ...formFile) *contribution.Contribution {
	t.Helper()
	rec := app.do(newMultipartRequest(t, http.MethodPost, "/v1/contributions", tkn, fields, files...))
	if rec.Code != http.StatusCreated {
		return nil
	}
	var c contribution.Contribution
	decode(t, rec, &c)
	return &c
}

func Test_contributionApi_list(t *testing.T) {
	app := setup(t)
	tkn := app.token(t, app.stud)
	w1 := app.postContribution(t, tkn, map[string]string{"week": "1", "contributor_name": "Sam", "media_type": "text", "caption": "my poem"})
	w2 := app.postContribution(t, tkn, map[string]string{"week": "2", "contributor_name": "Sam", "media_type": "text", "caption": "my song"})
	require.NotNil(t, w1)
	require.NotNil(t, w2)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "anonymous",
			path:     "/v1/contributions",
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "week too large",
			path:     "/v1/contributions?week=99",
			token:    tkn,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"week": "week must be a number between 1 and 53"}`),
		},
		{
			name:     "week not a number",
			path:     "/v1/contributions?week=one",
			token:    tkn,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "by week",
			path:     "/v1/contributions?week=2",
			token:    tkn,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, []contribution.Contribution{*w2}),
		},
		{
			name:     "all weeks",
			path:     "/v1/contributions",
			token:    tkn,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, []contribution.Contribution{*w2, *w1}),
		},
	})
}

func Test_contributionApi_create(t *testing.T) {
	img := formFile{field: "file", name: "drawing.png", contentType: "image/png", content: testutil.PNG(t, 8, 8)}
	imageFields := map[string]string{"week": "3", "contributor_name": "Sam", "media_type": "image", "caption": "my drawing"}

	t.Run("image", func(t *testing.T) {
		app := setup(t)
		c := app.postContribution(t, app.token(t, app.stud), imageFields, img)
		require.NotNil(t, c)
		assert.Equal(t, 3, c.Week)
		assert.Equal(t, contribution.MediaImage, c.MediaType)
		require.NotNil(t, c.Ref)
		assert.Equal(t, "image/png", c.MimeType)
		assert.Equal(t, int64(len(img.content)), c.FileSize)
		assert.Equal(t, "https://cdn.test/"+c.Path, c.FileURL)
		assert.True(t, app.store.Has(c.Path))
	})

	t.Run("image without file", func(t *testing.T) {
		app := setup(t)
		rec := app.do(newMultipartRequest(t, http.MethodPost, "/v1/contributions", app.token(t, app.stud), imageFields))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"file"`)
	})

	t.Run("media type mismatch", func(t *testing.T) {
		app := setup(t)
		fields := map[string]string{"week": "3", "contributor_name": "Sam", "media_type": "video"}
		rec := app.do(newMultipartRequest(t, http.MethodPost, "/v1/contributions", app.token(t, app.stud), fields, img))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, httpErr{Error: "Invalid file: image/png files are not accepted."}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
		assert.Empty(t, app.store.Keys())
	})

	t.Run("invalid fields", func(t *testing.T) {
		app := setup(t)
		fields := map[string]string{"week": "60", "contributor_name": " ", "media_type": "poem"}
		rec := app.do(newMultipartRequest(t, http.MethodPost, "/v1/contributions", app.token(t, app.stud), fields))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var errs map[string]string
		decode(t, rec, &errs)
		assert.Contains(t, errs, "week")
		assert.Contains(t, errs, "contributor_name")
		assert.Contains(t, errs, "media_type")
	})

	t.Run("storage down", func(t *testing.T) {
		app := setup(t)
		app.store.FailPut = true
		rec := app.do(newMultipartRequest(t, http.MethodPost, "/v1/contributions", app.token(t, app.stud), imageFields, img))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, httpErr{Error: "Upload failed, please try again."}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
		assert.Equal(t, 1, app.logger.Count("error"))

		rec = app.do(newAuthRequest(http.MethodGet, "/v1/contributions", app.token(t, app.stud)))
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func Test_contributionApi_delete(t *testing.T) {
	app := setup(t)
	c := app.postContribution(t, app.token(t, app.stud),
		map[string]string{"week": "1", "contributor_name": "Sam", "media_type": "image"},
		formFile{field: "file", name: "a.png", contentType: "image/png", content: testutil.PNG(t, 4, 4)},
	)
	require.NotNil(t, c)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "anonymous",
			method:   http.MethodDelete,
			path:     "/v1/contributions/" + c.ID,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "any user",
			method:   http.MethodDelete,
			path:     "/v1/contributions/" + c.ID,
			token:    app.token(t, app.stud2),
			wantCode: http.StatusNoContent,
		},
		{
			name:     "gone",
			method:   http.MethodDelete,
			path:     "/v1/contributions/" + c.ID,
			token:    app.token(t, app.stud2),
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
	})
	assert.False(t, app.store.Has(c.Path))
}
