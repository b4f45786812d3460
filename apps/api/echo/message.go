package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
)

var (
	errThreadPeerRequired = core.NewValidationError(nil, core.FieldError{Field: "with", Error: "this field is required"})
	errAudioFileRequired  = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
)

type messageApi struct {
	svc    *message.Service
	usrSvc *user.Service
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := messageApi{
		svc:    deps.MessageSvc,
		usrSvc: deps.UserSvc,
	}

	mg := g.Group("/messages", jwt)
	mg.GET("", api.thread)
	mg.POST("", api.send)
	mg.DELETE("/:id", api.destroy)

	g.POST("/audio-upload", api.uploadAudio, jwt)
}

func (api *messageApi) thread(ctx echo.Context) error {
	me, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	peer := core.CleanString(ctx.QueryParam("with"))
	if peer == "" {
		return errThreadPeerRequired
	}

	msgs, err := api.svc.Thread(ctx.Request().Context(), me.ID, peer)
	if err != nil {
		return errors.Wrap(err, "getting thread")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) send(ctx echo.Context) error {
	me, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data message.NewTextMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTextMessage")
	}
	file, done, err := formFile(ctx, "file")
	if err != nil {
		return err
	}
	defer done()

	msg, err := api.svc.SendText(ctx.Request().Context(), me, data, file)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) destroy(ctx echo.Context) error {
	me, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), me, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *messageApi) uploadAudio(ctx echo.Context) error {
	me, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data message.NewAudioMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAudioMessage")
	}
	file, done, err := formFile(ctx, "file")
	if err != nil {
		return err
	}
	defer done()
	if file == nil {
		return errAudioFileRequired
	}

	msg, err := api.svc.SendAudio(ctx.Request().Context(), me, data, *file)
	if err != nil {
		return errors.Wrap(err, "sending audio message")
	}
	return ctx.JSON(http.StatusOK, AudioUploadResponse{Success: true, URL: *msg.AudioURL, Message: msg})
}

type AudioUploadResponse struct {
	Success bool            `json:"success"`
	URL     string          `json:"url"`
	Message message.Message `json:"message"`
}
