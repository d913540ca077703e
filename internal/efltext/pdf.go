package efltext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/watthive/eflengine/internal/efl"
)

// PDF extracts text from PDF bytes in-process. It handles digitally
// produced labels; scanned documents come back empty here and belong to
// the remote extractor's OCR path.
type PDF struct{}

func (PDF) Extract(_ context.Context, doc []byte) (*Result, error) {
	r, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	rc, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	text := efl.NormalizeText(buf.String())
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("pdf: %w", ErrNoText)
	}
	return &Result{Text: text, Method: "local_pdf"}, nil
}
