package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// Request identifies one grid render.
type Request struct {
	Grid types.GridConfig

	// SessionID keys volatile state. Required.
	SessionID string

	// UserID keys persisted settings. Empty for anonymous users, who never
	// read or write the settings store.
	UserID string

	Params types.RequestParams
}

// Reconciler runs Compute against a session store and a settings store and
// writes the result back. It is safe for concurrent use when the stores are.
type Reconciler struct {
	sessions types.SessionStore
	settings types.SettingsStore
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Nil keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a Reconciler. settings may be nil, in which case
// every grid behaves as non-persistent.
func NewReconciler(sessions types.SessionStore, settings types.SettingsStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		sessions: sessions,
		settings: settings,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile computes the display state of one render. It reads each store
// at most once and writes each at most once: the session always, the
// settings only when a durable field changed. Store failures are returned
// wrapped; missing data is not a failure.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()
	gridID := req.Grid.ID
	logger := r.logger.With("grid", gridID, "session", req.SessionID)

	out, err := r.reconcile(ctx, req, logger)
	reconcileDuration.WithLabelValues(gridID).Observe(time.Since(start).Seconds())
	if err != nil {
		reconcileTotal.WithLabelValues(gridID, "error").Inc()
		return Outcome{}, err
	}
	result := "ok"
	if out.Persist {
		result = "persisted"
	}
	reconcileTotal.WithLabelValues(gridID, result).Inc()
	observeTrace(out.Trace)
	return out, nil
}

func (r *Reconciler) reconcile(ctx context.Context, req Request, logger *slog.Logger) (Outcome, error) {
	if req.SessionID == "" {
		return Outcome{}, fmt.Errorf("session id: %w", types.ErrInvalidID)
	}
	gridID := req.Grid.ID

	session, err := r.sessions.GetState(ctx, req.SessionID, gridID)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			return Outcome{}, fmt.Errorf("getting session state: %w", err)
		}
		session = nil
	}

	usesSettings := req.Grid.Persistent && req.UserID != "" && r.settings != nil
	var record *types.PersistentSettings
	if usesSettings {
		record, err = r.settings.GetSettings(ctx, req.UserID, gridID)
		if err != nil {
			if !errors.Is(err, types.ErrNotFound) {
				return Outcome{}, fmt.Errorf("getting settings: %w", err)
			}
			record = nil
		}
	}

	out := Compute(req.Grid, session, record, req.Params)
	if !usesSettings {
		out.Persist = false
	}

	if err := r.sessions.PutState(ctx, req.SessionID, gridID, out.State); err != nil {
		return Outcome{}, fmt.Errorf("putting session state: %w", err)
	}

	if out.Persist {
		rec := &types.PersistentSettings{
			UserID:          req.UserID,
			GridID:          gridID,
			DurableSettings: out.Settings,
			UpdatedAt:       r.now().UTC(),
		}
		if record != nil {
			rec.SettingsID = record.SettingsID
			rec.CreatedAt = record.CreatedAt
		}
		if err := r.settings.UpsertSettings(ctx, rec); err != nil {
			return Outcome{}, fmt.Errorf("upserting settings: %w", err)
		}
		settingsWrites.WithLabelValues(gridID).Inc()
		logger.Debug("persisted grid settings", "user", req.UserID, "page_size", rec.PageSize,
			"sort", rec.SortField, "direction", rec.SortDirection, "columns", rec.VisibleColumns)
	}

	logger.Debug("reconciled grid state",
		"first_render", session == nil,
		"reset", req.Params.Reset,
		"page", out.State.CurrentPage,
		"persist", out.Persist,
		"layers", out.Trace.Layers())
	return out, nil
}
