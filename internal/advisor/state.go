package advisor

import (
	"context"
	"log/slog"
	"sync"

	"toko-builder/internal/cache"
	"toko-builder/internal/metrics"
	"toko-builder/internal/store"
)

const stateKey = "advisor:state"

// Transcript is where emitted advisory cards land.
type Transcript interface {
	AppendAdvisory(ctx context.Context, card store.CardContent)
}

// persistedState is the opaque blob written to the key-value store.
type persistedState struct {
	Dismissed []string `json:"dismissed"`
	Enabled   bool     `json:"enabled"`
}

// Advisor owns the dismissed set and last-sent marker and runs rule
// evaluation ticks. A busy probe suppresses ticks while the orchestrator is
// mid-turn.
type Advisor struct {
	transcript Transcript
	cache      *cache.Redis
	busy       func() bool
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu         sync.Mutex
	dismissed  map[string]bool
	lastSentID string
	enabled    bool
}

// New creates an advisor. cache may be nil; state then lives only in memory.
func New(transcript Transcript, redis *cache.Redis, busy func() bool, enabled bool, logger *slog.Logger, metricRegistry *metrics.Metrics) *Advisor {
	return &Advisor{
		transcript: transcript,
		cache:      redis,
		busy:       busy,
		logger:     logger.With("component", "advisor"),
		metrics:    metricRegistry,
		dismissed:  make(map[string]bool),
		enabled:    enabled,
	}
}

// Load restores persisted dismissal/enablement state. Called once at startup
// before any tick.
func (a *Advisor) Load(ctx context.Context) {
	if a.cache == nil {
		return
	}
	var st persistedState
	found, err := a.cache.GetJSON(ctx, stateKey, &st)
	if err != nil {
		a.logger.Warn("failed loading advisor state", "error", err)
		return
	}
	if !found {
		return
	}
	a.mu.Lock()
	a.enabled = st.Enabled
	a.dismissed = make(map[string]bool, len(st.Dismissed))
	for _, id := range st.Dismissed {
		a.dismissed[id] = true
	}
	a.mu.Unlock()
}

// Tick evaluates the rules for the given configuration and focus and appends
// at most one advisory card to the transcript.
func (a *Advisor) Tick(ctx context.Context, cfg store.Configuration, focus string) {
	if a.busy != nil && a.busy() {
		return
	}

	a.mu.Lock()
	evalCtx := Context{
		DismissedIDs: a.dismissed,
		LastSentID:   a.lastSentID,
		Enabled:      a.enabled,
	}
	advice := Evaluate(cfg, focus, evalCtx)
	if advice != nil {
		a.lastSentID = advice.ID
	}
	a.mu.Unlock()

	if advice == nil {
		return
	}
	if a.metrics != nil {
		a.metrics.AdvisorCards.WithLabelValues(advice.ID).Inc()
	}
	a.transcript.AppendAdvisory(ctx, advice.Card)
}

// Dismiss adds the id to the dismissed set and persists it.
func (a *Advisor) Dismiss(ctx context.Context, id string) {
	a.mu.Lock()
	a.dismissed[id] = true
	a.mu.Unlock()
	a.persist(ctx)
}

// DisableAll flips the global toggle off and clears the last-sent marker.
func (a *Advisor) DisableAll(ctx context.Context) {
	a.mu.Lock()
	a.enabled = false
	a.lastSentID = ""
	a.mu.Unlock()
	a.persist(ctx)
}

// ResetLastSent clears the dedup marker; a new user turn may re-trigger the
// same advisory.
func (a *Advisor) ResetLastSent() {
	a.mu.Lock()
	a.lastSentID = ""
	a.mu.Unlock()
}

// Enabled reports the global toggle.
func (a *Advisor) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

func (a *Advisor) persist(ctx context.Context) {
	if a.cache == nil {
		return
	}
	a.mu.Lock()
	st := persistedState{Enabled: a.enabled, Dismissed: make([]string, 0, len(a.dismissed))}
	for id := range a.dismissed {
		st.Dismissed = append(st.Dismissed, id)
	}
	a.mu.Unlock()
	if err := a.cache.SetJSON(ctx, stateKey, st, 0); err != nil {
		a.logger.Warn("failed persisting advisor state", "error", err)
	}
}
