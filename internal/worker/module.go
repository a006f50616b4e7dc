package worker

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// registerWorkers attaches both background loops to the fx lifecycle. The
// sweeper and the PDF worker share no in-process state; they meet only in
// the persisted documents and the queue.
func registerWorkers(lc fx.Lifecycle, sweeper *Sweeper, pdfWorker *PdfWorker, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer func() { done <- struct{}{} }()
				sweeper.Run(ctx)
			}()
			go func() {
				defer func() { done <- struct{}{} }()
				pdfWorker.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			logger.Info("Stopping background workers")
			cancel()
			for i := 0; i < 2; i++ {
				select {
				case <-done:
				case <-stopCtx.Done():
					return stopCtx.Err()
				}
			}
			return nil
		},
	})
}

var Module = fx.Module("worker",
	fx.Provide(NewSweeper),
	fx.Provide(NewPdfWorker),
	fx.Invoke(registerWorkers),
)
