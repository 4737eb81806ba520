// Package pipeline wires the stages of a run together: map review files,
// sort the observations, reduce them into an aggregate, score, rank and
// write one table per (category, bucket), then hand the tables to the
// optional sinks.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/mapper"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/reducer"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/review"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/tracing"
)

// Options holds the collaborators of a Pipeline. Store, Notifier and
// Metrics are optional.
type Options struct {
	Mapper     *mapper.Mapper
	Writer     TableWriter
	Workers    int
	Partitions int
	MaxTerms   int
	Store      *sink.Store
	Notifier   *sink.Notifier
	Metrics    *metrics.Metrics
}

// TableWriter is satisfied by *output.Writer.
type TableWriter interface {
	WriteAll(tables []ranker.Table) ([]string, error)
}

// Result describes a finished run.
type Result struct {
	RunID        string
	Files        int
	Reviews      int64
	Observations int
	Records      int64
	Groups       int64
	Tables       []ranker.Table
	Paths        []string
	RowsStored   int
}

type Pipeline struct {
	opts Options
}

func New(opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Partitions <= 0 {
		opts.Partitions = 1
	}
	return &Pipeline{opts: opts}
}

// stage runs fn inside a child span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context, span *tracing.Span) error) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	start := time.Now()
	err := fn(ctx, span)
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	span.End()
	if p.opts.Metrics != nil {
		p.opts.Metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	logger.FromContext(ctx).Debug("stage finished", "stage", name, "duration", time.Since(start), "error", err)
	return err
}

// Run executes the whole pipeline over the review files matched by
// patterns.
func (p *Pipeline) Run(ctx context.Context, runID string, patterns []string) (Result, error) {
	res := Result{RunID: runID}
	var files []string
	if err := p.stage(ctx, "expand", func(ctx context.Context, span *tracing.Span) error {
		var err error
		files, err = review.Expand(patterns)
		span.SetAttr("files", len(files))
		return err
	}); err != nil {
		return res, err
	}
	res.Files = len(files)

	var obs []record.Observation
	if err := p.stage(ctx, "map", func(ctx context.Context, span *tracing.Span) error {
		var err error
		var reviews int64
		obs, reviews, err = p.MapFiles(ctx, files)
		res.Reviews = reviews
		span.SetAttr("reviews", reviews)
		span.SetAttr("observations", len(obs))
		return err
	}); err != nil {
		return res, err
	}
	res.Observations = len(obs)

	p.stage(ctx, "sort", func(context.Context, *tracing.Span) error {
		record.Sort(obs)
		return nil
	})

	var agg reducer.Aggregate
	if err := p.stage(ctx, "reduce", func(ctx context.Context, span *tracing.Span) error {
		var err error
		agg, res.Records, res.Groups, err = reducer.ReducePartitioned(ctx, obs, p.opts.Partitions)
		span.SetAttr("partitions", p.opts.Partitions)
		span.SetAttr("groups", res.Groups)
		return err
	}); err != nil {
		return res, err
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordsReducedTotal.Add(float64(res.Records))
		p.opts.Metrics.GroupsFlushedTotal.Add(float64(res.Groups))
	}
	obs = nil

	return p.finish(ctx, res, agg)
}

// Finish scores, ranks, writes and persists an aggregate produced elsewhere,
// such as by the streaming reduce command.
func (p *Pipeline) Finish(ctx context.Context, runID string, agg reducer.Aggregate) (Result, error) {
	return p.finish(ctx, Result{RunID: runID}, agg)
}

func (p *Pipeline) finish(ctx context.Context, res Result, agg reducer.Aggregate) (Result, error) {
	var scores scoring.Scores
	if err := p.stage(ctx, "score", func(ctx context.Context, span *tracing.Span) error {
		var err error
		scores, err = scoring.Compute(agg)
		span.SetAttr("scopes", len(scores))
		return err
	}); err != nil {
		return res, err
	}

	p.stage(ctx, "rank", func(context.Context, *tracing.Span) error {
		res.Tables = ranker.Tables(scores, p.opts.MaxTerms)
		return nil
	})

	if err := p.stage(ctx, "write", func(ctx context.Context, span *tracing.Span) error {
		var err error
		res.Paths, err = p.opts.Writer.WriteAll(res.Tables)
		span.SetAttr("tables", len(res.Paths))
		return err
	}); err != nil {
		return res, err
	}
	if p.opts.Metrics != nil {
		for _, t := range res.Tables {
			p.opts.Metrics.TablesWrittenTotal.WithLabelValues(string(t.Scope.Bucket)).Inc()
		}
	}

	if p.opts.Store != nil {
		if err := p.stage(ctx, "store", func(ctx context.Context, span *tracing.Span) error {
			n, err := p.opts.Store.SaveRun(ctx, res.RunID, res.Tables)
			res.RowsStored = n
			span.SetAttr("rows", n)
			return err
		}); err != nil {
			return res, err
		}
		if p.opts.Metrics != nil {
			p.opts.Metrics.RowsPersistedTotal.WithLabelValues(p.opts.Store.Driver()).Add(float64(res.RowsStored))
		}
	}
	if p.opts.Notifier != nil {
		if err := p.stage(ctx, "publish", func(ctx context.Context, _ *tracing.Span) error {
			return p.opts.Notifier.Publish(ctx, res.RunID, res.Tables, res.Paths)
		}); err != nil {
			return res, err
		}
	}
	logger.FromContext(ctx).Info("run complete",
		"tables", len(res.Tables),
		"records", res.Records,
		"groups", res.Groups,
	)
	return res, nil
}

// fileResult is what one worker produces for one review file.
type fileResult struct {
	obs     []record.Observation
	reviews int64
}

// MapFiles maps every file concurrently. Results are concatenated in file
// order so the observation sequence does not depend on scheduling.
func (p *Pipeline) MapFiles(ctx context.Context, files []string) ([]record.Observation, int64, error) {
	results := make([]fileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := p.mapFile(f)
			if err != nil {
				return fmt.Errorf("mapping %s: %w", f, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	total := 0
	var reviews int64
	for _, r := range results {
		total += len(r.obs)
		reviews += r.reviews
	}
	out := make([]record.Observation, 0, total)
	for _, r := range results {
		out = append(out, r.obs...)
	}
	return out, reviews, nil
}

func (p *Pipeline) mapFile(path string) (fileResult, error) {
	var res fileResult
	perBucket := make(map[record.Bucket]int)
	var category string
	err := review.ReadFile(path, func(r review.Review) error {
		res.reviews++
		category = r.Category
		return p.opts.Mapper.MapTo(r, func(o record.Observation) error {
			res.obs = append(res.obs, o)
			perBucket[o.Bucket]++
			return nil
		})
	})
	if err != nil {
		return res, err
	}
	if m := p.opts.Metrics; m != nil && res.reviews > 0 {
		m.ReviewsMappedTotal.WithLabelValues(category).Add(float64(res.reviews))
		for b, n := range perBucket {
			m.ObservationsEmittedTotal.WithLabelValues(string(b)).Add(float64(n))
		}
	}
	return res, nil
}

// MapStream maps files one by one and writes each observation to w in the
// stream format, unsorted. It returns the number of reviews read.
func (p *Pipeline) MapStream(ctx context.Context, files []string, w io.Writer) (int64, error) {
	rw := record.NewWriter(w)
	var reviews int64
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return reviews, err
		}
		err := review.ReadFile(f, func(r review.Review) error {
			reviews++
			return p.opts.Mapper.MapTo(r, rw.Write)
		})
		if err != nil {
			return reviews, fmt.Errorf("mapping %s: %w", f, err)
		}
	}
	if err := rw.Flush(); err != nil {
		return reviews, fmt.Errorf("flushing stream: %w", err)
	}
	slog.Debug("map stream complete", "files", len(files), "reviews", reviews)
	return reviews, nil
}
