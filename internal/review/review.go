// Package review holds the review model and its JSON Lines page files.
//
// The collector writes one file per page of items, named
// "<category>_page<N>.jsonl"; the mapper streams them back and takes the
// category from the file name.
package review

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

const fileSuffix = ".jsonl"

// Review is a single product review. Field names follow the columnar layout
// used by the fetch stage.
type Review struct {
	Key       string  `json:"review_key"`
	ItemKey   string  `json:"item_key"`
	Category  string  `json:"category"`
	ItemTitle string  `json:"item_title"`
	Title     string  `json:"review_title"`
	Content   string  `json:"review_content"`
	Rate      float64 `json:"review_rate"`
	Likes     int     `json:"review_likes"`
	Dislikes  int     `json:"review_dislikes"`
}

// PageFileName returns the file name for one page of a category.
func PageFileName(category string, page int) string {
	return fmt.Sprintf("%s_page%d%s", category, page, fileSuffix)
}

// CategoryFromFilename extracts the category code from a page file name,
// e.g. "MLA1055_page0.jsonl" -> "MLA1055".
func CategoryFromFilename(name string) (string, error) {
	base := filepath.Base(name)
	idx := strings.IndexByte(base, '_')
	if idx <= 0 {
		return "", fmt.Errorf("%w: no category prefix in file name %q", apperrors.ErrInvalidInput, base)
	}
	return base[:idx], nil
}

// WritePage atomically writes reviews to dir/PageFileName(category, page).
// It writes to a .tmp file first and renames on success.
func WritePage(dir string, category string, page int, reviews []Review) (string, error) {
	if !record.ValidCategory(category) || strings.Contains(category, "_") {
		return "", fmt.Errorf("%w: category %q cannot be used in a page file name", apperrors.ErrInvalidInput, category)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating review directory: %w", err)
	}
	finalPath := filepath.Join(dir, PageFileName(category, page))
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp review file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, r := range reviews {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("encoding review %s: %w", r.Key, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("writing reviews: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing review file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming review file: %w", err)
	}
	return finalPath, nil
}

// ReadFile streams every review in path to fn. The category of each review
// is taken from the file name. Iteration stops at the first error.
func ReadFile(path string, fn func(Review) error) error {
	category, err := CategoryFromFilename(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening review file: %w", err)
	}
	defer f.Close()
	return Decode(f, category, fn)
}

// Decode reads JSON Lines reviews from r, stamping each with category.
func Decode(r io.Reader, category string, fn func(Review) error) error {
	dec := json.NewDecoder(bufio.NewReader(r))
	for n := 1; ; n++ {
		var rev Review
		if err := dec.Decode(&rev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: review %d: %v", apperrors.ErrMalformedRecord, n, err)
		}
		rev.Category = category
		if err := fn(rev); err != nil {
			return err
		}
	}
}

// Expand resolves glob patterns and plain paths into a sorted, de-duplicated
// list of review files. Directories expand to the page files they contain.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, p := range patterns {
		info, err := os.Stat(p)
		if err == nil && info.IsDir() {
			p = filepath.Join(p, "*"+fileSuffix)
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", apperrors.ErrInvalidInput, p, err)
		}
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: no review files match %v", apperrors.ErrNotFound, patterns)
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}
