// Package reducer aggregates a sorted stream of (term, category, bucket,
// count) records. Consecutive records sharing (term, category) are buffered
// as one group and summed into the Aggregate when the key changes.
package reducer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

const ctxCheckEvery = 4096

// Reducer is the single-threaded grouped reduce over one sorted stream.
type Reducer struct {
	agg        Aggregate
	buffer     []record.Observation
	current    record.GroupKey
	hasCurrent bool
	records    int64
	groups     int64
	logger     *slog.Logger
}

func New() *Reducer {
	return &Reducer{
		agg:    NewAggregate(),
		buffer: make([]record.Observation, 0, 8),
		logger: slog.Default().With("component", "reducer"),
	}
}

// Add feeds the next record. A (term, category) key that sorts before the
// current group means the stream was not sorted and is rejected; bucket
// order inside a group does not matter.
func (r *Reducer) Add(o record.Observation) error {
	key := o.GroupKey()
	if r.hasCurrent && key != r.current {
		if record.CompareGroup(key, r.current) < 0 {
			return fmt.Errorf("%w: %q/%q after %q/%q", apperrors.ErrUnsortedInput,
				key.Term, key.Category, r.current.Term, r.current.Category)
		}
		r.flush()
	}
	r.current = key
	r.hasCurrent = true
	r.buffer = append(r.buffer, o)
	r.records++
	return nil
}

// flush sums every buffered record into the aggregate. Two records with the
// same bucket add up; neither replaces the other.
func (r *Reducer) flush() {
	if len(r.buffer) == 0 {
		return
	}
	for _, o := range r.buffer {
		r.agg.Add(o)
	}
	r.groups++
	r.buffer = r.buffer[:0]
}

// Close flushes the last group and hands the aggregate over. The Reducer
// must not be used afterwards.
func (r *Reducer) Close() Aggregate {
	r.flush()
	agg := r.agg
	r.agg = nil
	r.logger.Debug("reduce complete",
		"records", r.records,
		"groups", r.groups,
		"entries", agg.Size(),
	)
	return agg
}

// Records returns the number of records consumed so far.
func (r *Reducer) Records() int64 {
	return r.records
}

// Groups returns the number of (term, category) groups flushed so far.
func (r *Reducer) Groups() int64 {
	return r.groups
}

// ReduceStream reduces every record of rd. Malformed or unsorted input is
// fatal and reported with its line number.
func ReduceStream(ctx context.Context, rd *record.Reader) (Aggregate, *Reducer, error) {
	r := New()
	for {
		o, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, r, err
		}
		if err := r.Add(o); err != nil {
			return nil, r, fmt.Errorf("line %d: %w", rd.Line(), err)
		}
		if r.records%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, r, err
			}
		}
	}
	return r.Close(), r, nil
}

// ReduceSorted reduces an in-memory slice already in record.Sort order.
func ReduceSorted(obs []record.Observation) (Aggregate, *Reducer, error) {
	r := New()
	for i, o := range obs {
		if err := r.Add(o); err != nil {
			return nil, r, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return r.Close(), r, nil
}

// Partition returns the partition index of a group key in [0, n).
func Partition(key record.GroupKey, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key.Term))
	h.Write([]byte{'\t'})
	h.Write([]byte(key.Category))
	return int(h.Sum32()&0x7fffffff) % n
}

// ReducePartitioned splits a sorted slice by (term, category) hash, reduces
// each partition concurrently and merges the partial aggregates by
// summation. Partitioning keeps the relative order, so each partition stays
// sorted. It returns the merged aggregate and the total records and groups.
func ReducePartitioned(ctx context.Context, obs []record.Observation, partitions int) (Aggregate, int64, int64, error) {
	if partitions <= 1 {
		agg, r, err := ReduceSorted(obs)
		if err != nil {
			return nil, 0, 0, err
		}
		return agg, r.Records(), r.Groups(), nil
	}
	parts := make([][]record.Observation, partitions)
	for _, o := range obs {
		p := Partition(o.GroupKey(), partitions)
		parts[p] = append(parts[p], o)
	}

	partials := make([]Aggregate, partitions)
	reducers := make([]*Reducer, partitions)
	g, ctx := errgroup.WithContext(ctx)
	for i := range parts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			agg, r, err := ReduceSorted(parts[i])
			if err != nil {
				return fmt.Errorf("partition %d: %w", i, err)
			}
			partials[i] = agg
			reducers[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}

	merged := NewAggregate()
	var records, groups int64
	for i, partial := range partials {
		merged.Merge(partial)
		records += reducers[i].Records()
		groups += reducers[i].Groups()
	}
	return merged, records, groups, nil
}
