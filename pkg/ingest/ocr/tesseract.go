package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Tesseract shells out to the tesseract executable. It is the reference
// backend of the recognition chain.
type Tesseract struct {
	Binary string
}

var _ Backend = &Tesseract{}

func NewTesseract() *Tesseract {
	return &Tesseract{Binary: "tesseract"}
}

func (t *Tesseract) Name() string {
	return "tesseract"
}

func (t *Tesseract) Available() error {
	if _, err := exec.LookPath(t.Binary); err != nil {
		return fmt.Errorf("%w: %s", ErrNotInstalled, t.Binary)
	}
	return nil
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	args := []string{imagePath, "stdout"}
	if lang != "" {
		args = append(args, "-l", lang)
	}

	cmd := exec.CommandContext(ctx, t.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if strings.Contains(msg, "Failed loading language") {
			return "", fmt.Errorf("%w: %s", ErrMissingLanguage, lang)
		}
		return "", fmt.Errorf("tesseract: %v: %s", err, strings.TrimSpace(msg))
	}
	return stdout.String(), nil
}
