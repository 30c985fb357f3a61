package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
)

// CopyCountyList copies the county list published by the sibling migration tool.
// A missing source is not an error: it is logged and reported as not copied.
func CopyCountyList(src, dst string) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("county list not found, it will need to be produced separately", slog.String("source", src))
			return false, nil
		}
		return false, fmt.Errorf("open county list: %w", err)
	}
	defer in.Close()

	if err := ensureDir(dst); err != nil {
		return false, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return false, fmt.Errorf("create county list: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, fmt.Errorf("copy county list: %w", err)
	}
	if err := out.Close(); err != nil {
		return false, fmt.Errorf("close county list: %w", err)
	}

	slog.Info("copied county list", slog.String("source", src), slog.String("destination", dst))
	return true, nil
}
