package review

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

func TestCategoryFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"MLA1055_page0.jsonl", "MLA1055", false},
		{"/data/reviews/MLA5725_page12.jsonl", "MLA5725", false},
		{"_page0.jsonl", "", true},
		{"reviews.jsonl", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CategoryFromFilename(tt.name)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("CategoryFromFilename(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
			}
		})
	}
}

func TestWriteAndReadPage(t *testing.T) {
	dir := t.TempDir()
	in := []Review{
		{Key: "1", ItemKey: "MLA1", Content: "bueno producto", Rate: 5},
		{Key: "2", ItemKey: "MLA1", Content: "malo <muy> malo", Rate: 1, Dislikes: 2},
	}
	path, err := WritePage(dir, "X", 0, in)
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if filepath.Base(path) != "X_page0.jsonl" {
		t.Errorf("path = %s", path)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	var got []Review
	if err := ReadFile(path, func(r Review) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d reviews", len(got))
	}
	for _, r := range got {
		if r.Category != "X" {
			t.Errorf("category = %q, want X from file name", r.Category)
		}
	}
	if got[1].Content != "malo <muy> malo" || got[1].Dislikes != 2 {
		t.Errorf("second review = %+v", got[1])
	}
}

func TestWritePageRejectsBadCategory(t *testing.T) {
	dir := t.TempDir()
	for _, category := range []string{"", "../up", `a\b`, "MLA_1"} {
		if _, err := WritePage(dir, category, 0, nil); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("WritePage(%q) error = %v, want ErrInvalidInput", category, err)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	err := Decode(strings.NewReader("{\"review_key\":\"1\"}\n{not json\n"), "X", func(Review) error { return nil })
	if !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"B_page0.jsonl", "A_page0.jsonl", "notes.txt"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}
	files, err := Expand([]string{dir, filepath.Join(dir, "A_*.jsonl")})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "A_page0.jsonl" {
		t.Errorf("files = %v", files)
	}

	if _, err := Expand([]string{filepath.Join(dir, "none_*.jsonl")}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
