// Package render writes JSON responses and decodes JSON request bodies.
package render

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

const maxBodyBytes = 1 << 20

// Envelope is the generic API response body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes err as an error response. Errors that are not AppErrors
// become 500s with a generic message.
func Error(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr := apperrors.Wrap(err, "")
	status := appErr.StatusCode()

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("code", string(appErr.Code)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", fields...)
	} else {
		logger.Debug("Request rejected", fields...)
	}

	JSON(w, status, apperrors.ToErrorResponse(appErr, middleware.GetReqID(r.Context())))
}

// Decode reads a JSON body into dst. An empty or malformed body is a bad
// request.
func Decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := decode(w, r, dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewBadRequestError("No data provided")
		}
		return err
	}
	return nil
}

// DecodeOptional is Decode for endpoints whose body may be omitted.
func DecodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := decode(w, r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return io.EOF
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	return apperrors.NewBadRequestError("Invalid JSON payload").WithCause(err)
}
