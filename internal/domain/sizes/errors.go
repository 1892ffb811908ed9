package sizes

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrConfiguration  = errors.New("invalid size configuration")
	ErrResizeTooSmall = errors.New("image too small for size")
	ErrSizeNotFound   = errors.New("size not found")
	ErrGroupNotFound  = errors.New("size group not found")
)

// ConfigurationError describes an invalid size definition or size group.
// It is raised when sizes are registered, never while fitting.
type ConfigurationError struct {
	Size    string
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: size %q: %s", ErrConfiguration, e.Size, e.Message)
	}
	return fmt.Sprintf("%s: size %q field %s: %s", ErrConfiguration, e.Size, e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// ResizeTooSmallError is returned when a crop region or an uploaded image cannot
// produce a size without upscaling.
type ResizeTooSmallError struct {
	Size           string
	RequiredWidth  int
	RequiredHeight int
	ActualWidth    int
	ActualHeight   int
}

func (e *ResizeTooSmallError) Error() string {
	return fmt.Sprintf("%s %q: requires at least %dx%d, got %dx%d",
		ErrResizeTooSmall, e.Size, e.RequiredWidth, e.RequiredHeight, e.ActualWidth, e.ActualHeight)
}

func (e *ResizeTooSmallError) Unwrap() error {
	return ErrResizeTooSmall
}

func configError(size, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Size: size, Field: field, Message: fmt.Sprintf(format, args...)}
}
