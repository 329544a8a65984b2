package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/ingest/ocr"
)

// Extraction backend tags recorded on each chunk.
const (
	BackendNativePDF = "pdf_text"
	BackendPdftotext = "pdftotext"
	BackendPlainText = "text"
	BackendCombo     = "combo"
)

// PageText is the extraction result for one page.
type PageText struct {
	Page    int
	Text    string
	Backend string
}

// Extractor runs the per-page extraction cascade: native text layer, then
// the pdftotext executable, then the OCR chain over a rendered page image.
type Extractor struct {
	OcrBackends []ocr.Backend
	OcrLang     string
	Renderer    *PageRenderer
}

// PageCount opens the PDF and returns its page count.
func PageCount(pdfPath string) (int, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// ExtractPage walks the cascade for one page (1-based). The returned reason
// is non-empty only when every stage failed, naming the last obstacle.
func (e *Extractor) ExtractPage(ctx context.Context, pdfPath string, page int) (PageText, string) {
	if text, err := extractNativePage(pdfPath, page); err == nil && usableText(text) {
		return PageText{Page: page, Text: text, Backend: BackendNativePDF}, ""
	}

	if text, err := extractPdftotext(ctx, pdfPath, page); err == nil && usableText(text) {
		return PageText{Page: page, Text: text, Backend: BackendPdftotext}, ""
	} else if err != nil && isMissingBinary(err) {
		// fall through to OCR, remember nothing: OCR has its own reasons
	}

	return e.ocrPage(ctx, pdfPath, page)
}

func (e *Extractor) ocrPage(ctx context.Context, pdfPath string, page int) (PageText, string) {
	if len(e.OcrBackends) == 0 {
		return PageText{Page: page}, ReasonNoBackend
	}
	if e.Renderer == nil {
		return PageText{Page: page}, ReasonMissingLibs
	}

	imagePath, err := e.Renderer.Render(ctx, pdfPath, page)
	if err != nil {
		if isMissingBinary(err) {
			return PageText{Page: page}, ReasonMissingLibs
		}
		return PageText{Page: page}, ReasonOcrFailed
	}

	lastReason := ReasonNoBackend
	for _, backend := range e.OcrBackends {
		if err := backend.Available(); err != nil {
			switch {
			case backend.Name() == "tesseract":
				lastReason = ReasonTesseractMissing
			default:
				lastReason = ReasonMissingLibs
			}
			continue
		}
		text, err := backend.Recognize(ctx, imagePath, e.OcrLang)
		if err != nil {
			lastReason = ReasonOcrFailed
			continue
		}
		if usableText(text) {
			return PageText{Page: page, Text: text, Backend: "ocr_" + backend.Name()}, ""
		}
		lastReason = ReasonOcrFailed
	}
	return PageText{Page: page}, lastReason
}

func extractNativePage(pdfPath string, page int) (string, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	if page < 1 || page > r.NumPage() {
		return "", fmt.Errorf("page %d out of range", page)
	}
	p := r.Page(page)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d is null", page)
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page %d: %w", page, err)
	}
	return text, nil
}

func extractPdftotext(ctx context.Context, pdfPath string, page int) (string, error) {
	pageArg := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, "pdftotext",
		"-f", pageArg, "-l", pageArg, "-layout", pdfPath, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// usableText requires some alphanumeric signal, not just whitespace runs the
// text layer sometimes yields on scanned pages.
func usableText(text string) bool {
	count := 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			count++
			if count >= 10 {
				return true
			}
		}
	}
	return false
}

func isMissingBinary(err error) bool {
	return err != nil && strings.Contains(err.Error(), "executable file not found")
}
