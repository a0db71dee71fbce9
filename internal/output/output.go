// Package output persists state datasets as CSV files.
package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"cfetariff/internal/tariff"
)

// DefaultRoot is where per-state directories are created.
const DefaultRoot = "./scraped_data"

// Writer writes one file per state and year under Root.
type Writer struct {
	Root string
}

// NewWriter creates a Writer rooted at root, or DefaultRoot when empty
func NewWriter(root string) *Writer {
	if root == "" {
		root = DefaultRoot
	}
	return &Writer{Root: root}
}

// Path returns <root>/<state>/scraped_data_<year>.csv
func (w *Writer) Path(state, year string) string {
	return filepath.Join(w.Root, state, fmt.Sprintf("scraped_data_%s.csv", year))
}

// Write replaces the dataset's file with its full content. The file is
// written next to its destination and renamed into place, so readers never
// see a partial file.
func (w *Writer) Write(ds *tariff.Dataset) (string, error) {
	if ds == nil || len(ds.Rows) == 0 {
		return "", fmt.Errorf("refusing to write empty dataset: %w", tariff.ErrEmptyResult)
	}
	if ds.State == "" || ds.Year == "" {
		return "", fmt.Errorf("dataset is missing state or year")
	}

	path := w.Path(ds.State, ds.Year)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".scraped_data_*.csv.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := ds.WriteCSV(bw); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}
	return path, nil
}
