package service

import (
	"errors"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

// publicMessage is the text of err that may be shown to API clients.
// Unexpected errors collapse to a generic message.
func publicMessage(err error) string {
	var (
		validation *domain.ErrValidation
		conflict   *domain.ErrConflict
		notFound   *domain.ErrNotFound
		forbidden  *domain.ErrForbidden
		external   *domain.ErrExternalService
		open       *domain.ErrCircuitOpen
	)
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &conflict):
		return conflict.Error()
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.As(err, &forbidden):
		return forbidden.Error()
	case errors.As(err, &open):
		return open.Error()
	case errors.As(err, &external):
		if external.Err != nil {
			return external.Err.Error()
		}
		return external.Error()
	}
	return "internal error"
}
