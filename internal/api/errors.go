package api

import (
	"context"
	"errors"
	"net/http"

	"audioreport/internal/model"
	"audioreport/internal/report"
	"audioreport/internal/stt"
)

// statusClientClosed is nginx's code for a client that went away.
const statusClientClosed = 499

// statusFor maps an error from the services to an HTTP status.
func statusFor(err error) int {
	var (
		validation *model.ValidationError
		load       *stt.ModelLoadError
		trans      *stt.TranscriptionError
		local      *report.LocalGenerationError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &load):
		return http.StatusServiceUnavailable
	case errors.As(err, &trans), errors.As(err, &local):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled):
		return statusClientClosed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the error text sent to the client. Validation messages
// are passed through; everything else gets a fixed text so loader paths and
// backend output stay in the logs.
func publicMessage(err error, code int) string {
	var (
		load  *stt.ModelLoadError
		trans *stt.TranscriptionError
		local *report.LocalGenerationError
	)
	switch {
	case code == http.StatusBadRequest:
		return err.Error()
	case errors.As(err, &load):
		return "speech model unavailable, try again later"
	case errors.As(err, &trans):
		return "transcription failed"
	case errors.As(err, &local):
		return "report generation failed"
	case code == statusClientClosed:
		return "request cancelled"
	case code == http.StatusGatewayTimeout:
		return "request timed out"
	default:
		return "internal server error"
	}
}
