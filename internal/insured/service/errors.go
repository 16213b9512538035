package service

import (
	"context"
	"errors"

	dErrors "insured/pkg/domain-errors"
	"insured/pkg/platform/sentinel"
)

func notFound() error {
	return dErrors.New(dErrors.CodeNotFound, "insured person not found")
}

func duplicateIdentity() error {
	return dErrors.New(dErrors.CodeDuplicateIdentity,
		"an insured person with this identification number already exists")
}

// translate converts store errors into coded domain errors. msg describes the
// failed step for errors that are not domain facts.
func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return notFound()
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return duplicateIdentity()
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConcurrencyConflict,
			"insured person was modified by another request; reload and retry")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request did not complete in time")
	case errors.Is(err, sentinel.ErrInvalidData):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "insured person contains a value the registry cannot store")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
