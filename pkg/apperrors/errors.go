package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAuthFailed    = errors.New("analytics API authentication failed")
	ErrQueryFailed   = errors.New("analytics query execution failed")
	ErrSchemaInvalid = errors.New("explore schema is invalid")
)
