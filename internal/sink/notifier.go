package sink

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/kafka"
)

// topTermsInEvent caps the rows carried by a table event.
const topTermsInEvent = 10

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// TableEvent announces one written table.
type TableEvent struct {
	RunID    string              `json:"run_id"`
	Category string              `json:"category"`
	Bucket   string              `json:"bucket"`
	Path     string              `json:"path"`
	Terms    int                 `json:"terms"`
	Top      []ranker.ScoredTerm `json:"top"`
}

// Notifier publishes a TableEvent per table, keyed by category so a
// category's events land on one partition.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

// Events builds the events for tables written to paths.
func Events(runID string, tables []ranker.Table, paths []string) []kafka.Event {
	events := make([]kafka.Event, 0, len(tables))
	for i, t := range tables {
		top := t.Rows
		if len(top) > topTermsInEvent {
			top = top[:topTermsInEvent]
		}
		ev := TableEvent{
			RunID:    runID,
			Category: t.Scope.Category,
			Bucket:   string(t.Scope.Bucket),
			Terms:    len(t.Rows),
			Top:      top,
		}
		if i < len(paths) {
			ev.Path = paths[i]
		}
		events = append(events, kafka.Event{Key: t.Scope.Category, Value: ev})
	}
	return events
}

// Publish sends every table event in one batch.
func (n *Notifier) Publish(ctx context.Context, runID string, tables []ranker.Table, paths []string) error {
	if err := n.pub.PublishBatch(ctx, Events(runID, tables, paths)); err != nil {
		return fmt.Errorf("publishing table events: %w", err)
	}
	return nil
}
