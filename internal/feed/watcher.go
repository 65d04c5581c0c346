package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"odas-monitor/internal/logging"
	"odas-monitor/internal/storage"
)

// Update carries the current intervention set whenever the log content
// changes: the most recent records (newest first) plus the total count.
type Update struct {
	Records []storage.InterventionRecord `json:"records"`
	Total   int64                        `json:"total"`
}

// Options tune the watcher.
type Options struct {
	PollInterval time.Duration
	RecentLimit  int
}

// Watcher polls the intervention log and publishes an Update to every
// subscriber each time the log grows. It decouples feed consumers from the
// storage transport; a push-capable backend can replace it behind the same
// subscription surface.
type Watcher struct {
	store  storage.InterventionStore
	opts   Options
	logger zerolog.Logger

	mu        sync.Mutex
	subs      map[int]chan Update
	nextSubID int
	lastTotal int64
	primed    bool
}

// NewWatcher constructs a feed watcher over the given log.
func NewWatcher(store storage.InterventionStore, opts Options, logger zerolog.Logger) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 50
	}
	return &Watcher{
		store:  store,
		opts:   opts,
		logger: logging.Component(logger, "feed"),
		subs:   make(map[int]chan Update),
	}
}

// Subscribe registers a feed consumer. The returned cancel func must be
// called when the consumer is done. Slow consumers miss intermediate updates
// rather than blocking the watcher.
func (w *Watcher) Subscribe() (<-chan Update, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextSubID
	w.nextSubID++
	ch := make(chan Update, 1)
	w.subs[id] = ch

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// Poll performs one poll cycle; exposed so ticks can be driven directly in
// simulation runs.
func (w *Watcher) Poll(ctx context.Context) {
	w.poll(ctx)
}

func (w *Watcher) poll(ctx context.Context) {
	total, err := w.store.CountInterventions(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to count interventions")
		return
	}

	w.mu.Lock()
	changed := !w.primed || total != w.lastTotal
	w.primed = true
	w.lastTotal = total
	w.mu.Unlock()

	if !changed {
		return
	}

	records, err := w.store.ListRecentInterventions(ctx, w.opts.RecentLimit)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to list recent interventions")
		return
	}

	w.broadcast(Update{Records: records, Total: total})
}

func (w *Watcher) broadcast(update Update) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ch := range w.subs {
		select {
		case ch <- update:
		default:
			// subscriber still holds the previous update; replace it
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}
