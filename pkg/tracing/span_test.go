package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "run", "run-1")
	_, mapSpan := StartChildSpan(ctx, "map")
	mapSpan.SetAttr("reviews", 2)
	mapSpan.End()
	_, reduceSpan := StartChildSpan(ctx, "reduce")
	reduceSpan.End()
	root.End()

	if got := SpanFromContext(ctx); got != root {
		t.Fatal("SpanFromContext did not return the root")
	}
	var names []string
	var depths []int
	root.Walk(func(s *Span, depth int) {
		names = append(names, s.Name)
		depths = append(depths, depth)
		if s.TraceID != "run-1" {
			t.Errorf("span %s trace id = %q", s.Name, s.TraceID)
		}
	})
	if strings.Join(names, ",") != "run,map,reduce" || depths[1] != 1 || depths[2] != 1 {
		t.Errorf("walk = %v %v", names, depths)
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, nil)))
	out := buf.String()
	if strings.Count(out, "msg=span") != 3 || !strings.Contains(out, "reviews=2") {
		t.Errorf("log output:\n%s", out)
	}
}

func TestChildWithoutParent(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	span.End()
	if SpanFromContext(ctx) != span || span.TraceID != "" {
		t.Errorf("orphan span = %+v", span)
	}
}
