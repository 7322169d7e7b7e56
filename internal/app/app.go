package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"turnkeep/internal/archive"
	"turnkeep/internal/campaign"
	"turnkeep/internal/commands"
	"turnkeep/internal/config"
	"turnkeep/internal/encryption"
	"turnkeep/internal/state"
	"turnkeep/internal/telemetry"
	"turnkeep/internal/turn"
	"turnkeep/internal/vault"
)

// TurnkeepApp is the application layer between the CLI and turn.Manager.
// It constructs all dependencies from config, resolves the open turn of a
// campaign for commands that span processes, and releases everything on Close.
type TurnkeepApp struct {
	cfg       *config.Config
	opener    turn.Opener
	manager   *turn.Manager
	commands  *commands.Registry
	encryptor archive.Encryptor
	telemetry *telemetry.Provider
	clock     turn.Clock
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File
}

type options struct {
	stderr io.Writer
	clock  turn.Clock
	idgen  turn.IDGenerator
}

// Option configures a TurnkeepApp.
type Option func(*options)

// WithStderr sets where warnings are echoed. nil keeps them in the log file only.
func WithStderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

// WithClock overrides the wall clock.
func WithClock(c turn.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator overrides the UUID generator.
func WithIDGenerator(g turn.IDGenerator) Option {
	return func(o *options) { o.idgen = g }
}

// NewTurnkeepApp creates a fully wired TurnkeepApp from the given config.
// command identifies the CLI command being run (e.g. "turn commit").
// The caller must call Close when done.
func NewTurnkeepApp(ctx context.Context, cfg *config.Config, command string, opts ...Option) (*TurnkeepApp, error) {
	o := options{stderr: os.Stderr, clock: turn.RealClock{}, idgen: turn.UUIDGenerator{}}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, turn.WrapError(turn.CodeValidation, "config", err, "invalid configuration")
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	op := NewOperation(command, o.clock.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, o.stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	tel, err := telemetry.Init(ctx, cfg.Telemetry, logFile)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	opener := campaign.NewOpenerFromConfig(cfg, o.clock)
	reg := commands.Default(o.idgen)
	mgr := turn.NewManager(opener, reg, &slogAdapter{l: logger}, o.clock, o.idgen,
		turn.WithTracer(tel.Tracer),
		turn.WithMeter(tel.Meter),
		turn.WithCheckpointRetention(cfg.Checkpoints.Retain),
	)

	logger.Debug("operation started", "command", command)
	return &TurnkeepApp{
		cfg:       cfg,
		opener:    opener,
		manager:   mgr,
		commands:  reg,
		encryptor: enc,
		telemetry: tel,
		clock:     o.clock,
		logger:    logger,
		op:        op,
		logFile:   logFile,
	}, nil
}

// Operation returns the operation this app was created for.
func (a *TurnkeepApp) Operation() *Operation {
	return a.op
}

// Commands returns the registered command names.
func (a *TurnkeepApp) Commands() []string {
	return a.commands.Names()
}

func (a *TurnkeepApp) track(campaignID string) {
	a.op.Campaign = campaignID
}

// ListCampaigns returns the ids of every known campaign.
func (a *TurnkeepApp) ListCampaigns() ([]string, error) {
	l, ok := a.opener.(campaign.Lister)
	if !ok {
		return []string{}, nil
	}
	ids, err := l.List()
	if err != nil {
		return nil, turn.WrapError(turn.CodeIO, "campaign.list", err, "listing campaigns")
	}
	return ids, nil
}

// CreateCampaign creates a campaign. An empty id is generated.
func (a *TurnkeepApp) CreateCampaign(ctx context.Context, id, name string) (*turn.Campaign, error) {
	a.track(id)
	return a.manager.CreateCampaign(ctx, id, name)
}

// LoadCampaign opens a campaign, running recovery first.
func (a *TurnkeepApp) LoadCampaign(ctx context.Context, id string) (*turn.CampaignInfo, error) {
	a.track(id)
	return a.manager.LoadCampaign(ctx, id)
}

// Branch forks source at its latest committed turn into childID.
func (a *TurnkeepApp) Branch(ctx context.Context, sourceID, childID, name string) (*turn.Campaign, error) {
	a.track(sourceID)
	return a.manager.Branch(ctx, sourceID, childID, name)
}

// Validate checks a campaign's artifacts without changing them.
func (a *TurnkeepApp) Validate(ctx context.Context, id string) (*turn.ValidationReport, error) {
	a.track(id)
	return a.manager.Validate(ctx, id)
}

// RepairLog appends missing committed events to the event log.
func (a *TurnkeepApp) RepairLog(ctx context.Context, id string, dryRun bool) (*turn.RepairReport, error) {
	a.track(id)
	return a.manager.RepairLog(ctx, id, dryRun)
}

// Recover runs crash recovery on a campaign.
func (a *TurnkeepApp) Recover(ctx context.Context, id string) (*turn.RecoveryReport, error) {
	a.track(id)
	return a.manager.Recover(ctx, id)
}

// BeginTurn opens a new turn.
func (a *TurnkeepApp) BeginTurn(ctx context.Context, id string) (*turn.Handle, error) {
	a.track(id)
	return a.manager.Begin(ctx, id)
}

// RecordResult describes an event staged in the open turn.
type RecordResult struct {
	EventID    string `json:"event_id"`
	TurnID     string `json:"turn_id"`
	TurnNumber int64  `json:"turn_number"`
	Applied    bool   `json:"applied"`
}

// Record stages command in the campaign's open turn. Unless stageOnly is
// set, the command's mutation is applied to live state as well.
func (a *TurnkeepApp) Record(ctx context.Context, id, command string, payload json.RawMessage, stageOnly bool) (*RecordResult, error) {
	a.track(id)
	h, err := a.manager.Resume(ctx, id)
	if err != nil {
		return nil, err
	}

	var eventID string
	if stageOnly {
		eventID, err = a.manager.Record(ctx, h, command, payload)
	} else {
		var mutate turn.Mutation
		mutate, err = a.commands.Mutation(command, payload)
		if err != nil {
			return nil, err
		}
		eventID, err = a.manager.Apply(ctx, h, command, payload, mutate)
	}
	if err != nil {
		return nil, err
	}
	return &RecordResult{EventID: eventID, TurnID: h.TurnID, TurnNumber: h.TurnNumber, Applied: !stageOnly}, nil
}

// CommitTurn commits the campaign's open turn.
func (a *TurnkeepApp) CommitTurn(ctx context.Context, id, summary string) (*turn.CommitResult, error) {
	a.track(id)
	h, err := a.manager.Resume(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.manager.Commit(ctx, h, summary)
}

// RollbackTurn rolls back the campaign's open turn.
func (a *TurnkeepApp) RollbackTurn(ctx context.Context, id string) (*turn.RollbackResult, error) {
	a.track(id)
	h, err := a.manager.Resume(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.manager.Rollback(ctx, h)
}

// Diff returns the diff of turnID, or of the latest committed turn when
// turnID is empty.
func (a *TurnkeepApp) Diff(ctx context.Context, id, turnID string) (*turn.TurnDiff, error) {
	a.track(id)
	if turnID == "" {
		return a.manager.LatestDiff(ctx, id)
	}
	return a.manager.Diff(ctx, id, turnID)
}

// RecentDiffs returns up to limit diffs, newest first.
func (a *TurnkeepApp) RecentDiffs(ctx context.Context, id string, limit int) ([]*turn.TurnDiff, error) {
	a.track(id)
	return a.manager.RecentDiffs(ctx, id, limit)
}

// Undo reverts the latest committed turn through a compensating turn.
func (a *TurnkeepApp) Undo(ctx context.Context, id, summary string) (*turn.CommitResult, error) {
	a.track(id)
	return a.manager.Undo(ctx, id, summary)
}

// Status reports where a campaign stands.
func (a *TurnkeepApp) Status(ctx context.Context, id string) (*turn.StatusReport, error) {
	a.track(id)
	return a.manager.Status(ctx, id)
}

// State returns live state, narrowed to one kind and optionally one entity.
func (a *TurnkeepApp) State(ctx context.Context, id, kind, entityID string) (any, error) {
	a.track(id)
	st, err := a.manager.State(ctx, id)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return st, nil
	}
	if entityID == "" {
		entities := make(map[string]state.Entity, st.Count(kind))
		for _, eid := range st.IDs(kind) {
			e, _ := st.Get(kind, eid)
			entities[eid] = e
		}
		return entities, nil
	}
	e, ok := st.Get(kind, entityID)
	if !ok {
		return nil, turn.NewError(turn.CodeNotFound, "state", "%s %s not found", kind, entityID).
			WithDetails(map[string]any{"kind": kind, "id": entityID})
	}
	return e, nil
}

// SetupKeys generates the archive key pair.
func (a *TurnkeepApp) SetupKeys(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// archiveService connects to the named vault, or the first configured one.
func (a *TurnkeepApp) archiveService(ctx context.Context, vaultName string) (*archive.Service, error) {
	vcfg, err := vault.Select(a.cfg.Vaults, vaultName)
	if err != nil {
		return nil, turn.WrapError(turn.CodeValidation, "archive", err, "selecting vault")
	}
	v, err := vault.NewVaultFromConfig(ctx, vcfg)
	if err != nil {
		return nil, turn.WrapError(turn.CodeIO, "archive", err, "creating vault %s", vcfg.Name)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		return nil, turn.WrapError(turn.CodeIO, "archive", err, "vault %s is not reachable", vcfg.Name)
	}
	return archive.NewService(v, a.encryptor, a.clock, &slogAdapter{l: a.logger}), nil
}

// ArchivePush encrypts the campaign's live snapshot into a vault.
func (a *TurnkeepApp) ArchivePush(ctx context.Context, id, vaultName string) (*archive.PushResult, error) {
	a.track(id)
	if !a.encryptor.IsConfigured() {
		return nil, turn.NewError(turn.CodeValidation, "archive.push", "encryption keys are not set up")
	}
	svc, err := a.archiveService(ctx, vaultName)
	if err != nil {
		return nil, err
	}
	snap, err := a.manager.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return svc.Push(ctx, snap)
}

// ArchiveList returns the campaign's archive manifest.
func (a *TurnkeepApp) ArchiveList(ctx context.Context, id, vaultName string) (*archive.Manifest, error) {
	a.track(id)
	svc, err := a.archiveService(ctx, vaultName)
	if err != nil {
		return nil, err
	}
	return svc.List(ctx, id)
}

// ArchiveVerify downloads and checks an archived snapshot. turnNumber 0
// selects the latest.
func (a *TurnkeepApp) ArchiveVerify(ctx context.Context, id, vaultName string, turnNumber int64, passphrase string) (*archive.Entry, error) {
	a.track(id)
	svc, err := a.archiveService(ctx, vaultName)
	if err != nil {
		return nil, err
	}
	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return nil, err
	}
	return svc.Verify(ctx, id, turnNumber, dc)
}

// Finish records the outcome of the operation before Close.
func (a *TurnkeepApp) Finish(err error) {
	a.op.Finish(err)
	if err != nil {
		a.logger.Error("operation failed", "command", a.op.Command, "campaign", a.op.Campaign,
			"code", string(turn.CodeOf(err)), "error", err)
	}
}

// Close releases every campaign, flushes telemetry and closes the log.
func (a *TurnkeepApp) Close() error {
	var errs []error
	if err := a.manager.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing campaigns: %w", err))
	}
	if c, ok := a.opener.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing opener: %w", err))
		}
	}
	if err := a.telemetry.Shutdown(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
	}

	a.logger.Info("operation finished",
		"command", a.op.Command,
		"campaign", a.op.Campaign,
		"status", a.op.Status,
		"mutating", a.op.Mutating(),
		"duration", a.clock.Now().Sub(a.op.StartedAt).String(),
	)
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}
