package validation

import "errors"

var (
	ErrInvalidFileType     = errors.New("invalid file type")
	ErrEmptyFile           = errors.New("file is empty")
	ErrFileTooLarge        = errors.New("file size exceeds limit")
	ErrUnsupportedLanguage = errors.New("unsupported target language")
)
