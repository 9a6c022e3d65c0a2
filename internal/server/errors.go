package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spigell/scoreit/internal/apperr"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, detail := describe(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("request rejected", zap.String("route", c.Path()), zap.Error(err))
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, ErrorBody{Error: detail})
	}
	if werr != nil {
		s.logger.Warn("writing error response", zap.Error(werr))
	}
}

// describe maps err to a status and a client-safe body. Internal details of
// 5xx errors are never included.
func describe(err error) (int, ErrorDetail) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && he.Code < http.StatusInternalServerError {
			msg = s
		}
		return he.Code, ErrorDetail{Code: statusCode(he.Code), Message: msg}
	}

	return apperr.HTTPStatus(err), ErrorDetail{
		Code:    string(apperr.KindOf(err)),
		Message: apperr.PublicMessage(err),
	}
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("http_%d", status)
	}
	return strings.ToLower(strings.ReplaceAll(text, " ", "_"))
}
