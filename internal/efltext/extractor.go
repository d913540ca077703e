// Package efltext turns disclosure documents into normalized plain text.
// Extraction is an opaque, swappable capability: the engine consumes
// whichever extractor it is handed and never cares how the text was made.
package efltext

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoText reports a document that produced no usable text.
var ErrNoText = errors.New("no text extracted")

// Result is extracted text plus how it was produced.
type Result struct {
	Text   string   `json:"text"`
	Method string   `json:"method"`
	Notes  []string `json:"notes,omitempty"`
}

// Extractor produces normalized disclosure text from raw document bytes.
type Extractor interface {
	Extract(ctx context.Context, doc []byte) (*Result, error)
}

// Static returns the same canned text for every document. Test double.
type Static struct {
	Text   string
	Err    error
	Method string
}

func (s *Static) Extract(_ context.Context, _ []byte) (*Result, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	method := s.Method
	if method == "" {
		method = "static"
	}
	return &Result{Text: s.Text, Method: method}, nil
}

// Chain tries each extractor in order and returns the first success. A
// remote extractor backed by a local parser is the usual arrangement.
type Chain struct {
	extractors []Extractor
}

// NewChain builds a fallback chain in priority order.
func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

func (c *Chain) Extract(ctx context.Context, doc []byte) (*Result, error) {
	var lastErr error
	for _, ex := range c.extractors {
		res, err := ex.Extract(ctx, doc)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		return nil, fmt.Errorf("extract: %w", ErrNoText)
	}
	return nil, fmt.Errorf("extract: all extractors failed: %w", lastErr)
}
