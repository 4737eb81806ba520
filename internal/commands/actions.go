package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/collector"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/output"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/reducer"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/review"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

// FetchAction collects reviews for the configured categories.
func FetchAction(c *cli.Context) error {
	e, ctx, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()
	ctx, finish := e.startTrace(ctx, "fetch")
	defer finish()

	opts := collector.Options{
		OutputDir:         e.cfg.Fetcher.OutputDir,
		ReviewsGoal:       e.cfg.Fetcher.ReviewsGoal,
		MaxReviewsPerItem: e.cfg.Fetcher.MaxReviewsPerItem,
		PageLimit:         e.cfg.Fetcher.PageLimit,
		Concurrency:       e.cfg.Fetcher.Concurrency,
	}
	if c.IsSet("output-dir") {
		opts.OutputDir = c.String("output-dir")
	}
	if c.IsSet("reviews-goal") {
		opts.ReviewsGoal = c.Int("reviews-goal")
	}
	if c.IsSet("max-reviews-per-item") {
		opts.MaxReviewsPerItem = c.Int("max-reviews-per-item")
	}
	if opts.ReviewsGoal <= 0 || opts.MaxReviewsPerItem <= 0 {
		return fmt.Errorf("%w: reviews goal and per-item cap must be positive", apperrors.ErrInvalidConfig)
	}
	categories := e.cfg.Fetcher.Categories
	if v := c.StringSlice("category"); len(v) > 0 {
		categories = v
	}

	cache, err := e.pageCache(ctx)
	if err != nil {
		return err
	}
	if c.Bool("refresh") && cache != nil {
		n, err := cache.Invalidate(ctx)
		if err != nil {
			return err
		}
		e.logger.Info("page cache cleared", "keys", n)
	}

	stats, err := collector.New(e.client(cache), opts, e.metrics).CollectAll(ctx, categories)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tITEMS\tREVIEWS\tFILES")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", s.Category, s.Items, s.Reviews, len(s.Files))
	}
	return w.Flush()
}

// MapAction writes the observation stream of the given review files to
// stdout. Sorting is left to the caller, e.g. `sort`.
func MapAction(c *cli.Context) error {
	e, ctx, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	files, err := review.Expand(e.patterns(c))
	if err != nil {
		return err
	}
	m, err := e.mapper()
	if err != nil {
		return err
	}
	p := pipeline.New(pipeline.Options{Mapper: m, Metrics: e.metrics})
	reviews, err := p.MapStream(ctx, files, c.App.Writer)
	if err != nil {
		return err
	}
	e.logger.Info("map complete", "files", len(files), "reviews", reviews)
	return nil
}

// ReduceAction reads a sorted observation stream, reduces it and writes the
// ranked tables.
func ReduceAction(c *cli.Context) error {
	e, ctx, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()
	ctx, finish := e.startTrace(ctx, "reduce")
	defer finish()

	var in io.Reader = c.App.Reader
	if path := c.String("input"); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrNotFound, err)
		}
		defer f.Close()
		in = f
	}
	agg, red, err := reducer.ReduceStream(ctx, record.NewReader(in))
	if err != nil {
		return err
	}
	e.metrics.RecordsReducedTotal.Add(float64(red.Records()))
	e.metrics.GroupsFlushedTotal.Add(float64(red.Groups()))

	p, err := e.pipeline(ctx, true)
	if err != nil {
		return err
	}
	res, err := p.Finish(ctx, e.runID, agg)
	if err != nil {
		return err
	}
	return printPaths(c.App.Writer, res)
}

// RunAction runs the whole pipeline in one process.
func RunAction(c *cli.Context) error {
	e, ctx, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()
	ctx, finish := e.startTrace(ctx, "run")
	defer finish()

	p, err := e.pipeline(ctx, true)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx, e.runID, e.patterns(c))
	if err != nil {
		return err
	}
	return printPaths(c.App.Writer, res)
}

// TopAction prints the stored ranking of one table.
func TopAction(c *cli.Context) error {
	e, ctx, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	store, err := e.store(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("%w: sink.kind is not set", apperrors.ErrInvalidConfig)
	}
	bucket := c.String("bucket")
	if bucket != string(record.BucketNegative) && bucket != string(record.BucketPositive) {
		return fmt.Errorf("%w: unknown bucket %q", apperrors.ErrInvalidInput, bucket)
	}
	terms, err := store.TopTerms(ctx, c.String("run-id"), c.String("category"), bucket, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(terms) == 0 {
		return fmt.Errorf("%w: no stored terms for %s/%s in run %s",
			apperrors.ErrNotFound, c.String("category"), bucket, c.String("run-id"))
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TERM\tSCORE")
	for _, t := range terms {
		fmt.Fprintf(w, "%s\t%s\n", t.Term, output.FormatScore(t.Score))
	}
	return w.Flush()
}

// patterns returns the positional arguments, or the fetcher's output
// directory when none are given.
func (e *env) patterns(c *cli.Context) []string {
	if c.NArg() > 0 {
		return c.Args().Slice()
	}
	return []string{e.cfg.Fetcher.OutputDir}
}

func printPaths(w io.Writer, res pipeline.Result) error {
	for _, p := range res.Paths {
		if _, err := fmt.Fprintln(w, p); err != nil {
			return err
		}
	}
	return nil
}
