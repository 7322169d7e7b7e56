// Package turn is the turn transaction engine. A Manager brackets every batch
// of campaign mutations in a begin/commit/rollback turn, checkpoints state at
// begin, stages events while the turn is open and, on commit, flushes them to
// the append-only log, diffs the result against the checkpoint and publishes
// a new snapshot.
package turn

import (
	"context"
	"encoding/json"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"turnkeep/internal/diff"
	"turnkeep/internal/state"
)

// InstrumentationName is the tracer and meter scope used by the manager.
const InstrumentationName = "turnkeep/turn"

// DefaultCheckpointRetention is how many committed turns keep their
// checkpoint artifacts.
const DefaultCheckpointRetention = 3

// Option configures a Manager.
type Option func(*Manager)

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithMeter overrides the global meter.
func WithMeter(mt metric.Meter) Option {
	return func(m *Manager) { m.meter = mt }
}

// WithCheckpointRetention sets how many committed turns keep checkpoints.
// Values below one are raised to one so the last turn can always be undone.
func WithCheckpointRetention(n int) Option {
	return func(m *Manager) {
		if n < 1 {
			n = 1
		}
		m.retain = n
	}
}

// Manager orchestrates the turn lifecycle for any number of campaigns. Each
// campaign's operations are serialized; distinct campaigns share nothing.
type Manager struct {
	opener    Opener
	validator PayloadValidator
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	tracer    trace.Tracer
	meter     metric.Meter
	retain    int

	turnCounter  metric.Int64Counter
	eventCounter metric.Int64Counter

	mu        sync.Mutex
	campaigns map[string]*campaignEntry
}

type campaignEntry struct {
	mu        sync.Mutex
	artifacts *Artifacts
}

// NewManager creates a Manager. validator may be nil, in which case payloads
// are stored without schema checks.
func NewManager(opener Opener, validator PayloadValidator, logger Logger, clock Clock, idgen IDGenerator, opts ...Option) *Manager {
	m := &Manager{
		opener:    opener,
		validator: validator,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		retain:    DefaultCheckpointRetention,
		campaigns: make(map[string]*campaignEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(InstrumentationName)
	}
	if m.meter == nil {
		m.meter = otel.Meter(InstrumentationName)
	}

	var err error
	m.turnCounter, err = m.meter.Int64Counter("turnkeep.turns",
		metric.WithDescription("Turns reaching a lifecycle transition"))
	if err != nil {
		logger.Warn("creating turn counter", "error", err)
	}
	m.eventCounter, err = m.meter.Int64Counter("turnkeep.events",
		metric.WithDescription("Events staged inside turns"))
	if err != nil {
		logger.Warn("creating event counter", "error", err)
	}
	return m
}

// Close releases every opened campaign.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, e := range m.campaigns {
		e.mu.Lock()
		if e.artifacts.Release != nil {
			if err := e.artifacts.Release(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		e.mu.Unlock()
		delete(m.campaigns, id)
	}
	return firstErr
}

// Begin opens a new turn on the campaign.
func (m *Manager) Begin(ctx context.Context, campaignID string) (h *Handle, err error) {
	ctx, span := m.startSpan(ctx, "turn.Begin", campaignID)
	defer func() { endSpan(span, err) }()

	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		if err := a.Store.CheckMigrations(); err != nil {
			return WrapError(CodeMigration, "begin", err, "campaign store schema is not current").
				WithDetails(DetailsOf(err))
		}

		open, err := a.Store.GetOpenTurn(ctx, campaignID)
		if err != nil {
			return asCoded("begin", err, "checking for open turn")
		}
		if open != nil {
			return NewError(CodeConflict, "begin", "turn %d is already open", open.Number).
				WithDetails(map[string]any{"open_turn_id": open.ID, "open_turn_number": open.Number})
		}

		maxNumber, err := a.Store.MaxTurnNumber(ctx, campaignID)
		if err != nil {
			return asCoded("begin", err, "reading turn numbers")
		}
		live, err := a.Store.LoadState(ctx, campaignID)
		if err != nil {
			return asCoded("begin", err, "loading live state")
		}

		number := maxNumber + 1
		cp, err := a.Checkpoints.Create(campaignID, number, live)
		if err != nil {
			return asCoded("begin", err, "creating checkpoint")
		}

		t := &Turn{
			ID:         m.idgen.New(),
			CampaignID: campaignID,
			Number:     number,
			Status:     StatusOpen,
			StartedAt:  m.clock.Now(),
			Checkpoint: cp,
		}
		if err := a.Store.InsertTurn(ctx, t); err != nil {
			if CodeOf(err) != CodeConflict {
				if derr := a.Checkpoints.Delete(cp); derr != nil {
					m.logger.Warn("removing orphaned checkpoint", "ref", cp.Ref, "error", derr)
				}
			}
			return asCoded("begin", err, "persisting turn")
		}

		h = &Handle{CampaignID: campaignID, TurnID: t.ID, TurnNumber: number, Checkpoint: cp}
		m.count(ctx, m.turnCounter, campaignID, string(StatusOpen))
		m.logger.Info("turn begun", "campaign", campaignID, "turn", number, "checkpoint", cp.Ref)
		return nil
	})
	return h, err
}

// Resume returns a handle to the campaign's open turn.
func (m *Manager) Resume(ctx context.Context, campaignID string) (h *Handle, err error) {
	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		open, err := a.Store.GetOpenTurn(ctx, campaignID)
		if err != nil {
			return asCoded("resume", err, "checking for open turn")
		}
		if open == nil {
			return NewError(CodeNoActiveTurn, "resume", "campaign %s has no open turn", campaignID)
		}
		h = &Handle{CampaignID: campaignID, TurnID: open.ID, TurnNumber: open.Number, Checkpoint: open.Checkpoint}
		return nil
	})
	return h, err
}

// Record stages an event without touching live state.
func (m *Manager) Record(ctx context.Context, h *Handle, command string, payload json.RawMessage) (string, error) {
	return m.Apply(ctx, h, command, payload, nil)
}

// Apply stages an event and runs mutate against live state in the same
// storage transaction. Later commands in the turn observe the mutation.
func (m *Manager) Apply(ctx context.Context, h *Handle, command string, payload json.RawMessage, mutate Mutation) (eventID string, err error) {
	if h == nil {
		return "", NewError(CodeNoActiveTurn, "record", "no turn handle")
	}
	ctx, span := m.startSpan(ctx, "turn.Record", h.CampaignID)
	span.SetAttributes(attribute.String("turnkeep.command", command))
	defer func() { endSpan(span, err) }()

	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if m.validator != nil {
		if err := m.validator.Validate(command, payload); err != nil {
			if CodeOf(err) == "" {
				return "", WrapError(CodeValidationFailed, "record", err, "payload for %s rejected", command)
			}
			return "", err
		}
	}

	var wrapped Mutation
	if mutate != nil {
		wrapped = func(tx StateTx) error {
			if err := mutate(tx); err != nil {
				if CodeOf(err) == "" {
					return WrapError(CodeValidation, "record", err, "command %s rejected", command)
				}
				return err
			}
			return nil
		}
	}

	err = m.withCampaign(ctx, h.CampaignID, func(a *Artifacts) error {
		ev := &StagedEvent{
			ID:         m.idgen.New(),
			CampaignID: h.CampaignID,
			TurnID:     h.TurnID,
			Command:    command,
			Payload:    payload,
			Stage:      StageStaged,
			CreatedAt:  m.clock.Now(),
		}
		if err := a.Store.StageEvent(ctx, ev, wrapped); err != nil {
			return asCoded("record", err, "staging event")
		}
		eventID = ev.ID
		m.count(ctx, m.eventCounter, h.CampaignID, command)
		m.logger.Debug("event staged", "campaign", h.CampaignID, "turn", h.TurnNumber, "command", command, "seq", ev.Seq)
		return nil
	})
	return eventID, err
}

// Commit ends the turn, making its events part of durable history. On a
// corrupted checkpoint or a failed publish the turn stays open.
func (m *Manager) Commit(ctx context.Context, h *Handle, summary string) (res *CommitResult, err error) {
	if h == nil {
		return nil, NewError(CodeNoActiveTurn, "commit", "no turn handle")
	}
	ctx, span := m.startSpan(ctx, "turn.Commit", h.CampaignID)
	defer func() { endSpan(span, err) }()

	err = m.withCampaign(ctx, h.CampaignID, func(a *Artifacts) error {
		t, err := m.openTurn(ctx, a, h, "commit")
		if err != nil {
			return err
		}
		if err := m.dropUncommitted(a, t, "commit"); err != nil {
			return err
		}

		if err := a.Checkpoints.Verify(t.Checkpoint); err != nil {
			m.logger.Error("checkpoint verification failed", "campaign", h.CampaignID, "turn", t.Number, "error", err)
			return asCoded("commit", err, "verifying checkpoint")
		}
		before, err := a.Checkpoints.Load(t.Checkpoint)
		if err != nil {
			return asCoded("commit", err, "loading checkpoint")
		}
		after, err := a.Store.LoadState(ctx, h.CampaignID)
		if err != nil {
			return asCoded("commit", err, "loading live state")
		}
		events, err := a.Store.ListEvents(ctx, t.ID)
		if err != nil {
			return asCoded("commit", err, "listing staged events")
		}

		d := diff.Compute(before, after)
		lines := diff.Summarize(d, after)
		now := m.clock.Now()

		records := make([]LogRecord, 0, len(events))
		for _, ev := range events {
			if ev.Stage != StageStaged {
				continue
			}
			records = append(records, LogRecord{
				ID:         ev.ID,
				CampaignID: h.CampaignID,
				TurnID:     t.ID,
				TurnNumber: t.Number,
				Seq:        ev.Seq,
				Command:    ev.Command,
				Payload:    ev.Payload,
				Timestamp:  ev.CreatedAt,
			})
		}

		revertLog, err := a.Log.Append(records)
		if err != nil {
			return WrapError(CodeIO, "commit", err, "flushing events to log")
		}

		previous, err := a.Snapshots.Read()
		if err != nil {
			m.logger.Warn("reading previous snapshot", "campaign", h.CampaignID, "error", err)
			previous = nil
		}

		encoded, err := state.Encode(after)
		if err != nil {
			m.revert(revertLog, h.CampaignID)
			return WrapError(CodeIO, "commit", err, "encoding state")
		}
		snap := &Snapshot{
			CampaignID:  h.CampaignID,
			TurnID:      t.ID,
			TurnNumber:  t.Number,
			PublishedAt: now,
			Checksum:    state.Checksum(encoded),
			State:       after,
		}
		ref, err := a.Snapshots.Publish(snap)
		if err != nil {
			m.revert(revertLog, h.CampaignID)
			m.logger.Error("snapshot publish failed", "campaign", h.CampaignID, "turn", t.Number, "error", err)
			return WrapError(CodeIO, "commit", err, "publishing snapshot")
		}

		td := &TurnDiff{
			ID:         m.idgen.New(),
			TurnID:     t.ID,
			TurnNumber: t.Number,
			Diff:       d,
			Summary:    lines,
			CreatedAt:  now,
		}
		if err := a.Store.CommitTurn(ctx, CommitParams{TurnID: t.ID, EndedAt: now, Summary: summary, Diff: td}); err != nil {
			m.revert(revertLog, h.CampaignID)
			var perr error
			if previous != nil {
				_, perr = a.Snapshots.Publish(previous)
			} else {
				// The checkpoint holds the state the previous snapshot published.
				perr = m.republish(ctx, a, h.CampaignID, before)
			}
			if perr != nil {
				m.logger.Error("restoring previous snapshot", "campaign", h.CampaignID, "error", perr)
			}
			return asCoded("commit", err, "marking turn committed")
		}

		res = &CommitResult{
			TurnID:      t.ID,
			TurnNumber:  t.Number,
			Checksum:    snap.Checksum,
			Diff:        d,
			Summary:     lines,
			SnapshotRef: ref,
		}
		m.count(ctx, m.turnCounter, h.CampaignID, string(StatusCommitted))
		m.logger.Info("turn committed", "campaign", h.CampaignID, "turn", t.Number, "events", len(records), "changes", d.Len())

		m.pruneLocked(ctx, a, h.CampaignID)
		return nil
	})
	return res, err
}

// Rollback restores the state captured at begin and discards the turn's
// staged events. A corrupted checkpoint leaves the turn open.
func (m *Manager) Rollback(ctx context.Context, h *Handle) (res *RollbackResult, err error) {
	if h == nil {
		return nil, NewError(CodeNoActiveTurn, "rollback", "no turn handle")
	}
	ctx, span := m.startSpan(ctx, "turn.Rollback", h.CampaignID)
	defer func() { endSpan(span, err) }()

	err = m.withCampaign(ctx, h.CampaignID, func(a *Artifacts) error {
		t, err := a.Store.GetTurn(ctx, h.TurnID)
		if err != nil {
			return asCoded("rollback", err, "loading turn")
		}
		if t == nil || t.CampaignID != h.CampaignID {
			return NewError(CodeNotFound, "rollback", "turn %s not found", h.TurnID)
		}
		if t.Status.Terminal() {
			return NewError(CodeValidation, "rollback", "turn %d is already %s", t.Number, t.Status).
				WithDetails(map[string]any{"turn_id": t.ID, "status": t.Status})
		}

		branches, err := a.Store.BranchesFromTurn(ctx, t.ID)
		if err != nil {
			return asCoded("rollback", err, "checking branches")
		}
		if len(branches) > 0 {
			children := make([]string, len(branches))
			for i, b := range branches {
				children[i] = b.ChildCampaignID
			}
			return NewError(CodeValidation, "rollback", "turn %d has been branched and cannot be rolled back", t.Number).
				WithDetails(map[string]any{"branches": children})
		}

		restored, err := a.Checkpoints.Load(t.Checkpoint)
		if err != nil {
			m.logger.Error("checkpoint verification failed", "campaign", h.CampaignID, "turn", t.Number, "error", err)
			return asCoded("rollback", err, "loading checkpoint")
		}
		if err := m.dropUncommitted(a, t, "rollback"); err != nil {
			return err
		}

		now := m.clock.Now()
		discarded, err := a.Store.RollbackTurn(ctx, RollbackParams{
			TurnID:     t.ID,
			CampaignID: h.CampaignID,
			EndedAt:    now,
			Restore:    restored,
		})
		if err != nil {
			return asCoded("rollback", err, "restoring checkpoint")
		}

		// A failed commit may have left this turn's state published.
		snap, err := a.Snapshots.Read()
		if err != nil || (snap != nil && snap.TurnID == t.ID) {
			if err := m.republish(ctx, a, h.CampaignID, restored); err != nil {
				m.logger.Error("republishing snapshot after rollback", "campaign", h.CampaignID, "error", err)
			}
		}

		res = &RollbackResult{TurnID: t.ID, TurnNumber: t.Number, Discarded: discarded}
		m.count(ctx, m.turnCounter, h.CampaignID, string(StatusRolledBack))
		m.logger.Info("turn rolled back", "campaign", h.CampaignID, "turn", t.Number, "discarded", discarded)

		m.pruneLocked(ctx, a, h.CampaignID)
		return nil
	})
	return res, err
}

// Diff returns the stored diff of a committed turn.
func (m *Manager) Diff(ctx context.Context, campaignID, turnID string) (td *TurnDiff, err error) {
	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		t, err := a.Store.GetTurn(ctx, turnID)
		if err != nil {
			return asCoded("diff", err, "loading turn")
		}
		if t == nil || t.CampaignID != campaignID || t.Status != StatusCommitted {
			return NewError(CodeNotFound, "diff", "no committed turn %s", turnID)
		}
		td, err = a.Store.GetDiff(ctx, turnID)
		if err != nil {
			return asCoded("diff", err, "loading diff")
		}
		if td == nil {
			return NewError(CodeNotFound, "diff", "turn %d has no diff", t.Number)
		}
		return nil
	})
	return td, err
}

// LatestDiff returns the diff of the most recently committed turn.
func (m *Manager) LatestDiff(ctx context.Context, campaignID string) (*TurnDiff, error) {
	var turnID string
	err := m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		t, err := a.Store.LatestCommittedTurn(ctx, campaignID)
		if err != nil {
			return asCoded("diff", err, "loading latest turn")
		}
		if t == nil {
			return NewError(CodeNotFound, "diff", "campaign %s has no committed turns", campaignID)
		}
		turnID = t.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.Diff(ctx, campaignID, turnID)
}

// RecentDiffs returns up to limit diffs, newest first.
func (m *Manager) RecentDiffs(ctx context.Context, campaignID string, limit int) (diffs []*TurnDiff, err error) {
	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		diffs, err = a.Store.RecentDiffs(ctx, campaignID, limit)
		if err != nil {
			return asCoded("diff", err, "listing diffs")
		}
		return nil
	})
	return diffs, err
}

// State returns the campaign's live materialized state.
func (m *Manager) State(ctx context.Context, campaignID string) (st state.State, err error) {
	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		st, err = a.Store.LoadState(ctx, campaignID)
		if err != nil {
			return asCoded("state", err, "loading live state")
		}
		return nil
	})
	return st, err
}

// openTurn loads the handle's turn and checks that it is still open.
func (m *Manager) openTurn(ctx context.Context, a *Artifacts, h *Handle, op string) (*Turn, error) {
	t, err := a.Store.GetTurn(ctx, h.TurnID)
	if err != nil {
		return nil, asCoded(op, err, "loading turn")
	}
	if t == nil || t.CampaignID != h.CampaignID {
		return nil, NewError(CodeNoActiveTurn, op, "turn %s not found", h.TurnID)
	}
	if t.Status != StatusOpen {
		return nil, NewError(CodeNoActiveTurn, op, "turn %d is %s", t.Number, t.Status).
			WithDetails(map[string]any{"turn_id": t.ID, "status": t.Status})
	}
	return t, nil
}

// republish publishes st as the snapshot of the latest committed turn.
func (m *Manager) republish(ctx context.Context, a *Artifacts, campaignID string, st state.State) error {
	snap := &Snapshot{CampaignID: campaignID, PublishedAt: m.clock.Now(), State: st}
	last, err := a.Store.LatestCommittedTurn(ctx, campaignID)
	if err != nil {
		return err
	}
	if last != nil {
		snap.TurnID = last.ID
		snap.TurnNumber = last.Number
	}
	encoded, err := state.Encode(st)
	if err != nil {
		return err
	}
	snap.Checksum = state.Checksum(encoded)
	_, err = a.Snapshots.Publish(snap)
	return err
}

func (m *Manager) revert(revert func() error, campaignID string) {
	if revert == nil {
		return
	}
	if err := revert(); err != nil {
		m.logger.Error("reverting log append", "campaign", campaignID, "error", err)
	}
}

// withCampaign runs fn with the campaign's artifacts while holding the
// campaign's mutex, opening the campaign on first use.
func (m *Manager) withCampaign(ctx context.Context, campaignID string, fn func(a *Artifacts) error) error {
	e, err := m.entry(ctx, campaignID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.artifacts)
}

func (m *Manager) entry(ctx context.Context, campaignID string) (*campaignEntry, error) {
	if campaignID == "" {
		return nil, NewError(CodeValidation, "open", "campaign id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.campaigns[campaignID]; ok {
		return e, nil
	}
	a, err := m.opener.Open(ctx, campaignID)
	if err != nil {
		return nil, asCoded("open", err, "opening campaign")
	}
	e := &campaignEntry{artifacts: a}
	m.campaigns[campaignID] = e
	return e, nil
}

func (m *Manager) register(campaignID string, a *Artifacts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[campaignID] = &campaignEntry{artifacts: a}
}

func (m *Manager) startSpan(ctx context.Context, name, campaignID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("turnkeep.campaign_id", campaignID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(CodeOf(err)))
	}
	span.End()
}

func (m *Manager) count(ctx context.Context, c metric.Int64Counter, campaignID, kind string) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(
		attribute.String("turnkeep.campaign_id", campaignID),
		attribute.String("turnkeep.kind", kind),
	))
}
