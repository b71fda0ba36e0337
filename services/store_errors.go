package services

import (
	"errors"

	"dataprofileservice/repository"
	"dataprofileservice/services/clients"
	"dataprofileservice/services/validation"
	"dataprofileservice/utils"

	"gorm.io/gorm"
)

var errProfileNotFound = utils.NewNotFoundError("Profile Details Not Found", "profile-not-found|")

// Unique-key violation codes for Postgres and MySQL.
var duplicateKeyCodes = map[string]bool{"23505": true, "1062": true}

// storeError converts an error raised inside a transaction into an AppError.
// AppErrors pass through untouched.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := utils.AsAppError(err); ok {
		return err
	}

	var mismatch *repository.VersionMismatchError
	switch {
	case errors.As(err, &mismatch):
		if mismatch.Behind() {
			return utils.NewConflictError("The provided version is outdated compared to the current version.", "data-profile-update-version-behind|")
		}
		return utils.NewConflictError("The provided version is ahead of the current version.", "data-profile-update-version-ahead|")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errProfileNotFound
	case errors.Is(err, repository.ErrConcurrentUpdate), repository.IsSerializationFailure(err):
		return utils.NewSerializationFailureError(err)
	case repository.IsConnectionError(err):
		return utils.NewDBConnectionError(err)
	}

	if dbErr := repository.ClassifyError(err); dbErr != nil {
		return utils.NewDatabaseError(dbErr.Routine, dbErr.Code, err)
	}
	return utils.NewDatabaseError("", "", err)
}

func isDuplicateKey(err error) bool {
	dbErr := repository.ClassifyError(err)
	return dbErr != nil && duplicateKeyCodes[dbErr.Code]
}

// upstreamError reports a failed call to a collaborating service as a bad request.
func upstreamError(message string, err error) error {
	code := "upstream-error"
	var upErr *clients.UpstreamError
	if errors.As(err, &upErr) {
		code = upErr.Code()
	}
	return utils.NewUpstreamError(message, code, err)
}

func structuralError(failure *validation.Failure) error {
	details := make([]utils.ErrorDetail, 0, len(failure.Violations))
	for _, v := range failure.Violations {
		details = append(details, utils.ErrorDetail{Message: v.Message, Code: v.Code})
	}
	return utils.NewStructuralValidationError(details)
}
