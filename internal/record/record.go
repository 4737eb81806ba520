// Package record defines the keyed observation that flows from the mapper,
// through the sort, into the grouped reducer, and its tab-separated line
// encoding.
package record

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

// Bucket is the coarse sentiment class of a review.
type Bucket string

const (
	BucketNegative Bucket = "negative"
	BucketPositive Bucket = "positive"
)

// Observation is one (term, category, bucket) key with its count.
type Observation struct {
	Term     string
	Category string
	Bucket   Bucket
	Count    int64
}

// GroupKey is the reducer's grouping key. Bucket is excluded so that all
// buckets of a (term, category) pair land in one group.
type GroupKey struct {
	Term     string
	Category string
}

func (o Observation) GroupKey() GroupKey {
	return GroupKey{Term: o.Term, Category: o.Category}
}

// Key is the sort key "term\tcategory\tbucket".
func (o Observation) Key() string {
	return o.Term + "\t" + o.Category + "\t" + string(o.Bucket)
}

// Compare orders observations by term, then category, then bucket. It
// agrees with a byte-wise sort of the encoded lines because terms and
// categories never contain a tab.
func Compare(a, b Observation) int {
	if c := strings.Compare(a.Term, b.Term); c != 0 {
		return c
	}
	if c := strings.Compare(a.Category, b.Category); c != 0 {
		return c
	}
	return strings.Compare(string(a.Bucket), string(b.Bucket))
}

// CompareGroup orders group keys by term, then category.
func CompareGroup(a, b GroupKey) int {
	if c := strings.Compare(a.Term, b.Term); c != 0 {
		return c
	}
	return strings.Compare(a.Category, b.Category)
}

// Sort puts observations into the total order the reducer requires.
func Sort(obs []Observation) {
	slices.SortStableFunc(obs, Compare)
}

// Format encodes o as "term\tcategory\tbucket\tcount" without a newline.
func Format(o Observation) string {
	return o.Key() + "\t" + strconv.FormatInt(o.Count, 10)
}

// ValidCategory reports whether c can be used as part of a file name inside
// the output directory: non-empty, no path separators, no "..", no NUL.
func ValidCategory(c string) bool {
	return c != "" && !strings.ContainsAny(c, "/\\\x00") && !strings.Contains(c, "..")
}

// Parse decodes a single line. Trailing "\r\n" or "\n" is ignored.
func Parse(line string) (Observation, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return Observation{}, fmt.Errorf("%w: expected 4 tab-separated fields, got %d", apperrors.ErrMalformedRecord, len(fields))
	}
	for i, f := range fields[:3] {
		if f == "" {
			return Observation{}, fmt.Errorf("%w: field %d is empty", apperrors.ErrMalformedRecord, i+1)
		}
	}
	if !ValidCategory(fields[1]) {
		return Observation{}, fmt.Errorf("%w: category %q is not a valid file name component", apperrors.ErrMalformedRecord, fields[1])
	}
	count, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: count %q is not an integer", apperrors.ErrMalformedRecord, fields[3])
	}
	if count < 0 {
		return Observation{}, fmt.Errorf("%w: count %d is negative", apperrors.ErrMalformedRecord, count)
	}
	return Observation{
		Term:     fields[0],
		Category: fields[1],
		Bucket:   Bucket(fields[2]),
		Count:    count,
	}, nil
}

// Writer writes observations one per line.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(o Observation) error {
	if _, err := w.w.WriteString(Format(o)); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush writes any buffered lines. Called before exiting.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Reader reads observations one line at a time and remembers the line
// number for error reporting.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: s}
}

// Read returns the next observation, or io.EOF at the end of the stream.
// Blank lines are malformed records, not skipped.
func (r *Reader) Read() (Observation, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return Observation{}, fmt.Errorf("reading line %d: %w", r.line+1, err)
		}
		return Observation{}, io.EOF
	}
	r.line++
	o, err := Parse(r.scanner.Text())
	if err != nil {
		return Observation{}, fmt.Errorf("line %d: %w", r.line, err)
	}
	return o, nil
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}
