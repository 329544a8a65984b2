package ingest

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// PageRenderer rasterizes PDF pages through pdftoppm and caches results per
// source document, addressed by a content hash so re-ingesting an unchanged
// PDF reuses its images.
type PageRenderer struct {
	BaseDir string
	DPI     int
	Scale   float64 // multiplies DPI; <= 0 means 1.0
	Format  string  // "jpeg" or "png"
	Quality int

	mu     sync.Mutex
	hashes map[string]string // pdf path -> content hash, per run
}

func NewPageRenderer(baseDir string, dpi int, scale float64, format string, quality int) *PageRenderer {
	if format == "" {
		format = "jpeg"
	}
	return &PageRenderer{
		BaseDir: baseDir,
		DPI:     dpi,
		Scale:   scale,
		Format:  format,
		Quality: quality,
		hashes:  make(map[string]string),
	}
}

// resolution is the effective pdftoppm render DPI.
func (pr *PageRenderer) resolution() int {
	if pr.Scale > 0 {
		return int(float64(pr.DPI)*pr.Scale + 0.5)
	}
	return pr.DPI
}

func (pr *PageRenderer) ext() string {
	if pr.Format == "png" {
		return "png"
	}
	return "jpg"
}

// RelPath returns the page image path relative to BaseDir.
func (pr *PageRenderer) RelPath(pdfPath string, page int) (string, error) {
	hash, err := pr.contentHash(pdfPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(hash, fmt.Sprintf("page_%04d.%s", page, pr.ext())), nil
}

// Render produces the raster for one page (1-based) and returns its absolute
// path. Already-rendered pages are returned as-is.
func (pr *PageRenderer) Render(ctx context.Context, pdfPath string, page int) (string, error) {
	rel, err := pr.RelPath(pdfPath, page)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(pr.BaseDir, rel)

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	prefix := strings.TrimSuffix(dest, "."+pr.ext())
	pageArg := strconv.Itoa(page)
	args := []string{
		"-" + pr.Format,
		"-r", strconv.Itoa(pr.resolution()),
		"-f", pageArg, "-l", pageArg,
		"-singlefile",
	}
	if pr.Format == "jpeg" && pr.Quality > 0 {
		args = append(args, "-jpegopt", fmt.Sprintf("quality=%d", pr.Quality))
	}
	args = append(args, pdfPath, prefix)

	cmd := exec.CommandContext(ctx, "pdftoppm", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("pdftoppm produced no output for page %d", page)
	}
	return dest, nil
}

func (pr *PageRenderer) contentHash(pdfPath string) (string, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if hash, ok := pr.hashes[pdfPath]; ok {
		return hash, nil
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("read pdf for hashing: %w", err)
	}
	sum := sha1.Sum(data)
	hash := hex.EncodeToString(sum[:])
	pr.hashes[pdfPath] = hash
	return hash, nil
}
