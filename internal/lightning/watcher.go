package lightning

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const pollInterval = time.Second

// Watcher polls a swap's status while its invoice is outstanding and
// reports each transition.
type Watcher struct {
	client   *Client
	interval time.Duration
	logger   *zap.Logger
}

func NewWatcher(client *Client, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{client: client, interval: pollInterval, logger: logger}
}

// Client returns the underlying API client.
func (w *Watcher) Client() *Client {
	return w.client
}

// Watch polls every second until the swap reaches a terminal status or ctx
// is canceled. Each status change is sent on the returned channel, which is
// closed when watching stops. Poll errors are logged and retried on the
// next tick.
func (w *Watcher) Watch(ctx context.Context, id string) <-chan SwapDetails {
	updates := make(chan SwapDetails, 8)

	go func() {
		defer close(updates)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		var lastStatus string
		for {
			details, err := w.client.GetSwap(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("swap status poll failed", zap.String("id", id), zap.Error(err))
			} else {
				if details.Status != lastStatus {
					lastStatus = details.Status
					select {
					case updates <- details:
					case <-ctx.Done():
						return
					}
				}
				if IsTerminal(details.Status) {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return updates
}
