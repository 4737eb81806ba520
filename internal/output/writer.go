// Package output writes ranked tables as delimited files named
// terms_<category>_<bucket>.<ext>.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/scoring"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

const (
	FormatCSV = "csv"
	FormatTSV = "tsv"
)

var header = []string{"Term", "Score"}

// Writer writes tables into one directory.
type Writer struct {
	dir    string
	format string
	comma  rune
}

func NewWriter(dir, format string) (*Writer, error) {
	w := &Writer{dir: dir, format: format}
	switch format {
	case FormatCSV, "":
		w.format = FormatCSV
		w.comma = ','
	case FormatTSV:
		w.comma = '\t'
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", apperrors.ErrInvalidConfig, format)
	}
	return w, nil
}

// FileName returns the table file name for a scope.
func (w *Writer) FileName(scope scoring.Scope) string {
	return fmt.Sprintf("terms_%s_%s.%s", scope.Category, scope.Bucket, w.format)
}

// FormatScore renders a score with the fewest digits that read back to the
// same float64.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Write atomically creates the file for table. It writes to a .tmp file
// first and renames on success, so a failed write never leaves a partial
// table under the final name.
func (w *Writer) Write(table ranker.Table) (string, error) {
	if !record.ValidCategory(table.Scope.Category) {
		return "", fmt.Errorf("%w: category %q cannot be used in a file name", apperrors.ErrInvalidInput, table.Scope.Category)
	}
	finalPath := filepath.Join(w.dir, w.FileName(table.Scope))
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp table file: %w", err)
	}
	defer f.Close()
	defer os.Remove(tmpPath)

	cw := csv.NewWriter(f)
	cw.Comma = w.comma
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	row := make([]string, 2)
	for _, st := range table.Rows {
		row[0] = st.Term
		row[1] = FormatScore(st.Score)
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("writing row for term %q: %w", st.Term, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flushing table %s: %w", table.Scope, err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing table file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing table file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming table file: %w", err)
	}
	return finalPath, nil
}

// WriteAll writes every table and returns the written paths in order.
func (w *Writer) WriteAll(tables []ranker.Table) ([]string, error) {
	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		p, err := w.Write(t)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
