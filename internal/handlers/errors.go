package handlers

import (
	stderrors "errors"

	"scout-dashboard/internal/assistant"
	"scout-dashboard/internal/errors"
	"scout-dashboard/internal/services"
	"scout-dashboard/internal/store"
)

func errNoConsole() *errors.AppError {
	return errors.ServiceUnavailable("SQL console requires a database connection")
}

func errNoAssistant() *errors.AppError {
	return errors.ServiceUnavailable("AI assistant is not configured")
}

// appError maps a service error onto the HTTP error taxonomy. Anything not
// recognised is treated as a data store or model API failure.
func appError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var verr *assistant.ValidationError
	switch {
	case stderrors.As(err, &verr):
		return errors.ValidationWrap(err, verr.Reason)
	case stderrors.Is(err, services.ErrUnknownChart),
		stderrors.Is(err, services.ErrUnknownTab),
		stderrors.Is(err, store.ErrUnknownTable):
		return errors.Wrap(err, errors.CodeNotFound, err.Error())
	case stderrors.Is(err, assistant.ErrNotConfigured):
		return errors.Wrap(err, errors.CodeServiceUnavail, "AI assistant is not configured")
	case stderrors.Is(err, assistant.ErrNoSQL):
		return errors.Upstream(err, assistant.ErrNoSQL.Error())
	default:
		return errors.Upstream(err, err.Error())
	}
}
