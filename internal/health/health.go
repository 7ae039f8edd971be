// Package health serves the JSON status snapshots of all pairs.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hoveln/framesync/internal/controller"
	"github.com/hoveln/framesync/pkg/pubsub"
)

type Health struct {
	publisher *pubsub.Publisher[controller.Status]
	logger    *slog.Logger

	lock     sync.RWMutex
	statuses map[string]controller.Status
}

func New(publisher *pubsub.Publisher[controller.Status], logger *slog.Logger) *Health {
	return &Health{
		publisher: publisher,
		logger:    logger,
		statuses:  make(map[string]controller.Status),
	}
}

// Run collects status snapshots until ctx is cancelled.
func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.publisher.Subscribe()
	defer h.publisher.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case status := <-ch:
			h.lock.Lock()
			h.statuses[status.Name] = status
			h.lock.Unlock()
		}
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if len(h.statuses) == 0 {
		http.Error(w, "no status yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(h.statuses); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
