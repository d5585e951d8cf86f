// Package worker runs the periodic maintenance loop that sweeps expired
// token rows out of storage.
package worker

import (
	"context"
	"log/slog"
	"time"

	"backoffice/config"
	"backoffice/internal/delivery"
	"backoffice/internal/usecase"

	"go.uber.org/fx"
)

type cleanupWorker struct {
	interval time.Duration
	authUC   usecase.AuthUsecase
	resetUC  usecase.PasswordResetUsecase
	logger   *slog.Logger
	stopped  chan struct{}
	cancel   context.CancelFunc
}

// WorkerParams holds dependencies for the cleanup worker
type WorkerParams struct {
	fx.In
	fx.Lifecycle

	Cfg     *config.Config
	AuthUC  usecase.AuthUsecase
	ResetUC usecase.PasswordResetUsecase
	Logger  *slog.Logger
}

// NewCleanupWorker creates the periodic token sweeper. Expired refresh and
// reset token rows are already unusable when presented, so the sweep only
// reclaims storage; its cadence is not correctness-sensitive.
func NewCleanupWorker(params WorkerParams) (delivery.Delivery, error) {
	interval := time.Hour
	if params.Cfg != nil && params.Cfg.Auth != nil && params.Cfg.Auth.CleanupInterval > 0 {
		interval = params.Cfg.Auth.CleanupInterval
	}

	worker := &cleanupWorker{
		interval: interval,
		authUC:   params.AuthUC,
		resetUC:  params.ResetUC,
		logger:   params.Logger,
		stopped:  make(chan struct{}),
	}

	params.Append(fx.Hook{
		OnStop: worker.stop,
	})

	return worker, nil
}

// Serve runs the sweep loop until the worker is stopped.
func (w *cleanupWorker) Serve(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	defer close(w.stopped)

	w.logger.Info("Starting token cleanup worker", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *cleanupWorker) sweep(ctx context.Context) {
	sessions, err := w.authUC.CleanupExpiredSessions(ctx)
	if err != nil {
		w.logger.Error("Failed to sweep expired refresh tokens", slog.Any("error", err))
	}

	resets, err := w.resetUC.CleanupExpiredTokens(ctx)
	if err != nil {
		w.logger.Error("Failed to sweep expired reset tokens", slog.Any("error", err))
	}

	w.logger.Info("Token sweep completed",
		slog.Int64("refreshTokensRemoved", sessions),
		slog.Int64("resetTokensRemoved", resets),
	)
}

func (w *cleanupWorker) stop(ctx context.Context) error {
	w.logger.Info("Shutting down token cleanup worker")

	if w.cancel != nil {
		w.cancel()
	}

	select {
	case <-w.stopped:
	case <-ctx.Done():
	}

	return nil
}
