package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/huddle/pkg/errcode"
)

// Response represents a standard API response
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success sends a success response
func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: errcode.ErrSuccess.Code,
		Msg:  errcode.ErrSuccess.Msg,
		Data: data,
	})
}

// Error sends an error response. Errors without a business code are
// reported as internal errors and their text is not exposed.
func Error(ctx context.Context, c *app.RequestContext, err error) {
	e := errcode.ErrInternalServer
	var be *errcode.Error
	if errors.As(err, &be) {
		e = be
	}
	ErrorWithCode(ctx, c, e)
}

// ErrorWithCode sends an error response with specific error code
func ErrorWithCode(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	c.JSON(http.StatusOK, Response{
		Code: e.Code,
		Msg:  e.Msg,
	})
}
