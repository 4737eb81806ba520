package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/mapper"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/output"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/reducer"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/review"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/sqlite"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/tracing"
)

func writeReviews(t *testing.T, dir string) {
	t.Helper()
	pages := map[string][]review.Review{
		"X": {
			{Key: "1", Rate: 5, Content: "bueno producto"},
			{Key: "2", Rate: 1, Content: "malo muy malo"},
		},
		"Y": {
			{Key: "3", Rate: 4, Content: "producto excelente"},
		},
	}
	for category, reviews := range pages {
		if _, err := review.WritePage(dir, category, 0, reviews); err != nil {
			t.Fatal(err)
		}
	}
}

func newMapper(t *testing.T) *mapper.Mapper {
	t.Helper()
	m, err := mapper.New(mapper.Options{Threshold: mapper.DefaultThreshold, Stopwords: tokenizer.NewStopwords("de")})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

type fakeKafka struct {
	msgs []kafkago.Message
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error { return nil }

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	in := t.TempDir()
	out := t.TempDir()
	writeReviews(t, in)

	w, err := output.NewWriter(out, output.FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	db, err := sqlite.Open(ctx, sqlite.MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store, _ := sink.NewStore(db, sink.DriverSQLite)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	fk := &fakeKafka{}

	p := New(Options{
		Mapper:     newMapper(t),
		Writer:     w,
		Workers:    2,
		Partitions: 3,
		Store:      store,
		Notifier:   sink.NewNotifier(kafka.NewProducerWithWriter(fk, "scores.published")),
		Metrics:    metrics.New(),
	})
	ctx, root := tracing.StartSpan(ctx, "run", "run-1")
	res, err := p.Run(ctx, "run-1", []string{in})
	root.End()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Files != 2 || res.Reviews != 3 || res.Observations != 7 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Tables) != 3 || len(res.Paths) != 3 {
		t.Fatalf("tables = %d paths = %d", len(res.Tables), len(res.Paths))
	}

	var names []string
	for _, p := range res.Paths {
		names = append(names, filepath.Base(p))
	}
	sort.Strings(names)
	want := []string{"terms_X_negative.csv", "terms_X_positive.csv", "terms_Y_positive.csv"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v", names)
	}

	data, err := os.ReadFile(filepath.Join(out, "terms_X_negative.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	wantMalo := "malo," + output.FormatScore(2.0/3.0*math.Log(2))
	if lines[0] != "Term,Score" || lines[1] != wantMalo {
		t.Errorf("X/negative =\n%s", data)
	}

	data, _ = os.ReadFile(filepath.Join(out, "terms_X_positive.csv"))
	if !strings.HasSuffix(strings.TrimSpace(string(data)), "producto,0") {
		t.Errorf("producto appears in both categories and must score 0:\n%s", data)
	}

	if res.RowsStored != 6 {
		t.Errorf("rows stored = %d", res.RowsStored)
	}
	if len(fk.msgs) != 3 {
		t.Errorf("kafka messages = %d", len(fk.msgs))
	}
	var spans []string
	root.Walk(func(s *tracing.Span, _ int) { spans = append(spans, s.Name) })
	if strings.Join(spans, ",") != "run,expand,map,sort,reduce,score,rank,write,store,publish" {
		t.Errorf("spans = %v", spans)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	in := t.TempDir()
	writeReviews(t, in)
	read := func(dir string) string {
		var b strings.Builder
		files, _ := filepath.Glob(filepath.Join(dir, "*.tsv"))
		sort.Strings(files)
		for _, f := range files {
			data, _ := os.ReadFile(f)
			b.WriteString(filepath.Base(f))
			b.Write(data)
		}
		return b.String()
	}
	var first string
	for i, parts := range []int{1, 4, 1} {
		out := t.TempDir()
		w, _ := output.NewWriter(out, output.FormatTSV)
		p := New(Options{Mapper: newMapper(t), Writer: w, Workers: 3, Partitions: parts})
		if _, err := p.Run(context.Background(), "r", []string{filepath.Join(in, "*.jsonl")}); err != nil {
			t.Fatal(err)
		}
		got := read(out)
		if i == 0 {
			first = got
		} else if got != first {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
}

func TestRunNoFiles(t *testing.T) {
	w, _ := output.NewWriter(t.TempDir(), output.FormatCSV)
	p := New(Options{Mapper: newMapper(t), Writer: w})
	_, err := p.Run(context.Background(), "r", []string{filepath.Join(t.TempDir(), "*.jsonl")})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRunMalformedReviewFile(t *testing.T) {
	in := t.TempDir()
	if err := os.WriteFile(filepath.Join(in, "X_page0.jsonl"), []byte("{not json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	w, _ := output.NewWriter(t.TempDir(), output.FormatCSV)
	p := New(Options{Mapper: newMapper(t), Writer: w})
	ctx, root := tracing.StartSpan(context.Background(), "run", "r")
	if _, err := p.Run(ctx, "r", []string{in}); !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
	var mapSpan *tracing.Span
	root.Walk(func(s *tracing.Span, _ int) {
		if s.Name == "map" {
			mapSpan = s
		}
	})
	if mapSpan == nil || mapSpan.EndTime.IsZero() {
		t.Fatalf("map span = %+v", mapSpan)
	}
	if msg, _ := mapSpan.Attrs["error"].(string); !strings.Contains(msg, "malformed record") {
		t.Errorf("map span error attr = %q", msg)
	}
}

func TestMapStreamThenFinish(t *testing.T) {
	ctx := context.Background()
	in := t.TempDir()
	writeReviews(t, in)
	files, err := review.Expand([]string{in})
	if err != nil {
		t.Fatal(err)
	}
	p := New(Options{Mapper: newMapper(t)})
	var stream bytes.Buffer
	reviews, err := p.MapStream(ctx, files, &stream)
	if err != nil || reviews != 3 {
		t.Fatalf("MapStream: %d %v", reviews, err)
	}

	lines := strings.Split(strings.TrimSpace(stream.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("stream lines = %d:\n%s", len(lines), stream.String())
	}
	sort.Strings(lines)
	sorted := strings.Join(lines, "\n") + "\n"

	agg, _, err := reducer.ReduceStream(ctx, record.NewReader(strings.NewReader(sorted)))
	if err != nil {
		t.Fatal(err)
	}
	if got := agg.Count("malo", "X", record.BucketNegative); got != 2 {
		t.Errorf("malo = %d, want 2", got)
	}

	out := t.TempDir()
	w, _ := output.NewWriter(out, output.FormatCSV)
	p = New(Options{Mapper: newMapper(t), Writer: w, MaxTerms: 1})
	res, err := p.Finish(ctx, "r", agg)
	if err != nil {
		t.Fatal(err)
	}
	for _, tbl := range res.Tables {
		if len(tbl.Rows) > 1 {
			t.Errorf("%s has %d rows, want at most 1", tbl.Scope, len(tbl.Rows))
		}
	}
}
