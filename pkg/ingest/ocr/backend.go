// Package ocr models text recognition as an ordered list of interchangeable
// backends. Each backend is independently optional; the caller walks the
// chain and falls through on availability or recognition failures.
package ocr

import (
	"context"
	"errors"
)

// ErrNotInstalled marks a backend whose executable or runtime is absent.
var ErrNotInstalled = errors.New("ocr: backend not installed")

// ErrMissingLanguage marks a backend missing the requested language pack.
var ErrMissingLanguage = errors.New("ocr: language data not installed")

type Backend interface {
	Name() string

	// Available reports whether the backend can run at all, wrapping
	// ErrNotInstalled or ErrMissingLanguage when it cannot.
	Available() error

	// Recognize extracts text from an image file on disk.
	Recognize(ctx context.Context, imagePath, lang string) (string, error)
}
