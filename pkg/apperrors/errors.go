package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrDataFileMissing     = errors.New("data file missing")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnknownProvider     = errors.New("unknown llm provider")
)
