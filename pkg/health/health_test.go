package health

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRunWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]ComponentHealth
		want   Status
	}{
		{"empty", nil, StatusUp},
		{"all up", map[string]ComponentHealth{"a": Up("ok"), "b": Up("ok")}, StatusUp},
		{"degraded", map[string]ComponentHealth{"a": Up("ok"), "b": {Status: StatusDegraded}}, StatusDegraded},
		{"down wins", map[string]ComponentHealth{"a": {Status: StatusDegraded}, "b": Down(errors.New("refused"))}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, result := range tt.checks {
				c.Register(name, func(context.Context) ComponentHealth { return result })
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.checks))
			}
		})
	}
}

func TestReportWriteTo(t *testing.T) {
	c := NewChecker()
	c.Register("sqlite", func(context.Context) ComponentHealth { return FromError(nil, "reviewterms.db") })
	c.Register("redis", func(context.Context) ComponentHealth { return FromError(errors.New("refused"), "") })
	var buf bytes.Buffer
	if _, err := c.Run(context.Background()).WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "redis") || !strings.HasPrefix(lines[1], "sqlite") || lines[2] != "overall: down" {
		t.Errorf("output:\n%s", buf.String())
	}
}
