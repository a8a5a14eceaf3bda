package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/backoff"
	"github.com/customeros/inboxsync/internal/config"
	"github.com/customeros/inboxsync/internal/enum"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

const (
	DefaultShutdownGrace    = 5 * time.Second
	DefaultMaxRetryDuration = 30 * time.Minute
	DefaultIndexMaxAttempts = 5
	DefaultStableSession    = time.Minute
)

// Dependencies are injected collaborators. Archive, Publisher and Accounts may be nil.
type Dependencies struct {
	Transport  interfaces.MailTransport
	Decoder    interfaces.Decoder
	Classifier interfaces.Classifier
	Index      interfaces.IndexStore
	Notifier   interfaces.Notifier
	Cursors    interfaces.SyncCursorRepository
	Accounts   interfaces.AccountRepository
	Archive    interfaces.RawArchive
	Publisher  interfaces.EventPublisher
}

type Config struct {
	Backoff          backoff.Policy
	MaxRetryDuration time.Duration
	ShutdownGrace    time.Duration
	IndexMaxAttempts int

	// StableSession is how long a session must stay watching before the reconnect delay starts over.
	StableSession time.Duration
	Clock         func() time.Time
}

func ConfigFromSync(cfg *config.SyncConfig) Config {
	return Config{
		Backoff:          backoff.NewPolicy(cfg.BackoffBase, cfg.BackoffCap),
		MaxRetryDuration: cfg.MaxRetryDuration,
		ShutdownGrace:    cfg.ShutdownGrace,
		IndexMaxAttempts: cfg.IndexMaxAttempts,
		StableSession:    cfg.StableSession,
	}
}

type Orchestrator struct {
	log    logger.Logger
	deps   Dependencies
	config Config

	mu      sync.RWMutex
	workers map[string]*worker
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

var _ interfaces.SyncOrchestrator = (*Orchestrator)(nil)

func NewOrchestrator(log logger.Logger, deps Dependencies, config Config) *Orchestrator {
	if config.Backoff.Base <= 0 {
		config.Backoff = backoff.DefaultPolicy()
	}
	if config.MaxRetryDuration <= 0 {
		config.MaxRetryDuration = DefaultMaxRetryDuration
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = DefaultShutdownGrace
	}
	if config.IndexMaxAttempts <= 0 {
		config.IndexMaxAttempts = DefaultIndexMaxAttempts
	}
	if config.StableSession <= 0 {
		config.StableSession = DefaultStableSession
	}
	if config.Clock == nil {
		config.Clock = utils.Now
	}
	return &Orchestrator{
		log:     log,
		deps:    deps,
		config:  config,
		workers: make(map[string]*worker),
	}
}

// Start launches one worker per registered account. Accounts added later start immediately.
func (o *Orchestrator) Start(ctx context.Context) error {
	span, ctx := tracing.StartTracerSpan(ctx, "Orchestrator.Start")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx != nil {
		err := errors.New("orchestrator already started")
		tracing.TraceErr(span, err)
		return err
	}

	// workers outlive the start request, so only the tracing span is inherited
	o.ctx, o.cancel = context.WithCancel(context.WithoutCancel(ctx))
	span.LogKV("accounts", len(o.workers))
	for _, w := range o.workers {
		o.launch(w)
	}

	o.log.Infof("Sync orchestrator started with %d account(s)", len(o.workers))
	return nil
}

func (o *Orchestrator) launch(w *worker) {
	ctx, cancel := context.WithCancel(o.ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go o.run(ctx, w)
}

// Stop cancels every worker and waits up to the shutdown grace period.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	workers := make([]*worker, 0, len(o.workers))
	for _, w := range o.workers {
		workers = append(workers, w)
	}
	o.mu.Unlock()

	o.log.Info("Stopping sync orchestrator...")

	deadline := time.After(o.config.ShutdownGrace)
	for _, w := range workers {
		if w.done == nil {
			continue
		}
		select {
		case <-w.done:
		case <-deadline:
			o.log.Warnf("Timeout waiting for account workers to stop")
			return errors.New("shutdown grace period exceeded")
		}
	}

	o.log.Info("Sync orchestrator stopped")
	return nil
}

// AddAccount registers an account; it is synced right away once the orchestrator runs.
func (o *Orchestrator) AddAccount(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Orchestrator.AddAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if account == nil || account.Email == "" {
		err := mailerrors.ErrInvalidInput
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagAccount(span, account.Email)

	copied := *account
	copied.ApplyDefaults()
	if copied.ID == "" {
		copied.ID = utils.GenerateEventID("acc")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		err := errors.New("orchestrator stopped")
		tracing.TraceErr(span, err)
		return err
	}
	for _, existing := range o.workers {
		if existing.account.ID == copied.ID || existing.account.Email == copied.Email {
			err := mailerrors.ErrAccountExists
			tracing.TraceErr(span, err)
			return err
		}
	}

	w := newWorker(&copied, o.config.Clock())
	o.workers[copied.ID] = w
	if o.ctx != nil {
		o.launch(w)
	}
	o.log.Infof("[%s] Account registered with folders %v", copied.Email, []string(copied.Folders))
	return nil
}

// RemoveAccount stops the worker and forgets the account's cursors.
func (o *Orchestrator) RemoveAccount(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Orchestrator.RemoveAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, accountID)

	o.mu.Lock()
	w := o.lookup(accountID)
	if w == nil {
		o.mu.Unlock()
		err := mailerrors.ErrAccountNotFound
		tracing.TraceErr(span, err)
		return err
	}
	delete(o.workers, w.account.ID)
	o.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		select {
		case <-w.done:
		case <-time.After(o.config.ShutdownGrace):
			o.log.Warnf("[%s] Worker did not stop within grace period", w.account.Email)
		}
	}

	if err := o.deps.Cursors.DeleteAccountCursors(ctx, w.account.ID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	o.log.Infof("[%s] Account removed", w.account.Email)
	return nil
}

// lookup accepts an account id or email. Caller holds o.mu.
func (o *Orchestrator) lookup(accountID string) *worker {
	if w, ok := o.workers[accountID]; ok {
		return w
	}
	for _, w := range o.workers {
		if w.account.Email == accountID {
			return w
		}
	}
	return nil
}

// TriggerImmediateSync never blocks. Repeated triggers before the worker
// reacts collapse into one rescan.
func (o *Orchestrator) TriggerImmediateSync(accountID string) bool {
	o.mu.RLock()
	w := o.lookup(accountID)
	o.mu.RUnlock()

	if w == nil {
		return false
	}
	w.requestSync()
	return true
}

// TriggerAll requests a rescan of every account and returns how many were poked.
func (o *Orchestrator) TriggerAll() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, w := range o.workers {
		w.requestSync()
	}
	return len(o.workers)
}

func (o *Orchestrator) Status() map[string]interfaces.AccountStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	result := make(map[string]interfaces.AccountStatus, len(o.workers))
	for id, w := range o.workers {
		result[id] = w.snapshot()
	}
	return result
}

// Degraded lists accounts that have been failing for longer than the retry budget.
func (o *Orchestrator) Degraded() []interfaces.AccountStatus {
	var result []interfaces.AccountStatus
	for _, status := range o.Status() {
		if status.Health == enum.AccountHealthDegraded.String() {
			result = append(result, status)
		}
	}
	return result
}
