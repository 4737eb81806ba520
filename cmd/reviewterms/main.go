package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/commands"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := commands.NewApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		slog.Error("reviewterms failed", "error", err)
	}
	os.Exit(apperrors.ExitCode(err))
}
