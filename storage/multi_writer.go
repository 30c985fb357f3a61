package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/cbp-establishments/models"
)

// MultiWriter fans the processed series out to several writers.
type MultiWriter struct {
	writers []Writer
	mu      sync.Mutex
}

// NewMultiWriter ignores nil writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Len reports how many writers are attached.
func (mw *MultiWriter) Len() int {
	return len(mw.writers)
}

// Write writes to every writer, even after one fails.
func (mw *MultiWriter) Write(processed models.Processed) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for _, w := range mw.writers {
		if err := w.Write(processed); err != nil {
			errs = append(errs, fmt.Errorf("%T write failed: %w", w, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all writers
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%T close failed: %w", w, err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates all outputs
func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%T validation failed: %w", w, err))
		}
	}
	return errors.Join(errs...)
}
