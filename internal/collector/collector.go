package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/review"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/metrics"
)

const (
	ItemsResource   = "sites/MLA/search"
	ReviewsResource = "reviews/item"
)

// Options bounds how much the collector fetches.
type Options struct {
	OutputDir         string
	ReviewsGoal       int
	MaxReviewsPerItem int
	PageLimit         int
	Concurrency       int
}

// Stats summarizes one category.
type Stats struct {
	Category string
	Pages    int
	Files    []string
	Items    int
	Reviews  int
}

// Collector walks a category's items and stores the reviews of each page
// of items as one review page file.
type Collector struct {
	client  *Client
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(client *Client, opts Options, m *metrics.Metrics) *Collector {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Collector{
		client:  client,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "collector"),
	}
}

// CollectAll collects every category, a few at a time.
func (c *Collector) CollectAll(ctx context.Context, categories []string) ([]Stats, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories to fetch", apperrors.ErrInvalidInput)
	}
	stats := make([]Stats, len(categories))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, category := range categories {
		g.Go(func() error {
			s, err := c.Collect(ctx, category)
			if err != nil {
				return fmt.Errorf("category %s: %w", category, err)
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// Collect fetches items of category page by page until the items run out
// or ReviewsGoal reviews have been stored. Items without reviews are
// skipped; pages that yield no reviews write no file.
func (c *Collector) Collect(ctx context.Context, category string) (Stats, error) {
	stats := Stats{Category: category}
	logger := c.logger.With("category", category)
	logger.Info("collecting category")

	pager := c.client.NewPager(ItemsResource, "", url.Values{"category": {category}}, c.opts.PageLimit)
	for stats.Reviews < c.opts.ReviewsGoal {
		page, err := pager.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("fetching items page %d: %w", stats.Pages, err)
		}
		stats.Pages++

		reviews, items, err := c.pageReviews(ctx, category, page.Results, c.opts.ReviewsGoal-stats.Reviews)
		if err != nil {
			return stats, err
		}
		stats.Items += items
		if len(reviews) == 0 {
			continue
		}
		path, err := review.WritePage(c.opts.OutputDir, category, page.Index, reviews)
		if err != nil {
			return stats, err
		}
		stats.Files = append(stats.Files, path)
		stats.Reviews += len(reviews)
		if c.metrics != nil {
			c.metrics.ReviewsFetchedTotal.WithLabelValues(category).Add(float64(len(reviews)))
		}
		logger.Info("stored review page", "page", page.Index, "items", items, "reviews", len(reviews), "total", stats.Reviews)
	}
	logger.Info("category collected", "pages", stats.Pages, "items", stats.Items, "reviews", stats.Reviews)
	return stats, nil
}

// pageReviews gathers reviews for the items of one page, stopping once goal
// reviews have been gathered. It returns the reviews and the number of items
// that had any.
func (c *Collector) pageReviews(ctx context.Context, category string, items []Item, goal int) ([]review.Review, int, error) {
	var out []review.Review
	withReviews := 0
	for _, item := range items {
		got, err := c.ItemReviews(ctx, item.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("reviews of item %s: %w", item.ID, err)
		}
		if len(got) == 0 {
			continue
		}
		withReviews++
		c.logger.Debug("item reviews", "item", item.ID, "reviews", len(got))
		for _, r := range got {
			out = append(out, review.Review{
				Key:       strconv.FormatInt(r.ID, 10),
				ItemKey:   item.ID,
				Category:  category,
				ItemTitle: item.Title,
				Title:     r.Title,
				Content:   r.Content,
				Rate:      r.Rate,
				Likes:     r.Likes,
				Dislikes:  r.Dislikes,
			})
		}
		if len(out) >= goal {
			break
		}
	}
	return out, withReviews, nil
}

// ItemReviews returns up to MaxReviewsPerItem reviews of item. An item the
// reviews endpoint does not know has none.
func (c *Collector) ItemReviews(ctx context.Context, itemID string) ([]APIReview, error) {
	pager := c.client.NewPager(ReviewsResource, itemID, nil, c.opts.PageLimit)
	var out []APIReview
	for {
		page, err := pager.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(page.Reviews) == 0 {
			return out, nil
		}
		for _, r := range page.Reviews {
			out = append(out, r)
			if len(out) >= c.opts.MaxReviewsPerItem {
				return out, nil
			}
		}
	}
}
