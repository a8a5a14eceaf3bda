package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	backoffpolicy "github.com/customeros/inboxsync/internal/backoff"
	"github.com/customeros/inboxsync/internal/enum"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

type worker struct {
	account *models.Account
	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}

	mu           sync.RWMutex
	state        enum.SyncState
	health       enum.AccountHealth
	lastError    string
	folders      map[string]interfaces.FolderStats
	lastChecked  time.Time
	failingSince time.Time
	alerted      bool

	// watchingSince is zero until the current session reaches watching.
	watchingSince time.Time
}

func newWorker(account *models.Account, now time.Time) *worker {
	return &worker{
		account:     account,
		trigger:     make(chan struct{}, 1),
		state:       enum.SyncStateDisconnected,
		health:      enum.AccountHealthOK,
		folders:     make(map[string]interfaces.FolderStats),
		lastChecked: now,
	}
}

func (w *worker) requestSync() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// drainTrigger discards a pending trigger that the scan about to start satisfies.
func (w *worker) drainTrigger() {
	select {
	case <-w.trigger:
	default:
	}
}

func (w *worker) snapshot() interfaces.AccountStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	folders := make(map[string]interfaces.FolderStats, len(w.folders))
	for name, stats := range w.folders {
		folders[name] = stats
	}
	return interfaces.AccountStatus{
		AccountID:   w.account.ID,
		Email:       w.account.Email,
		State:       w.state.String(),
		Health:      w.health.String(),
		LastError:   w.lastError,
		Folders:     folders,
		LastChecked: w.lastChecked,
	}
}

func (w *worker) folderAdvanced(folder string, cursor uint32, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := w.folders[folder]
	if cursor > stats.Cursor {
		stats.Cursor = cursor
	}
	stats.LastSync = now
	w.folders[folder] = stats
	w.lastChecked = now
}

func (w *worker) folderReset(folder string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := w.folders[folder]
	stats.Cursor = 0
	w.folders[folder] = stats
}

func (o *Orchestrator) setState(ctx context.Context, w *worker, state enum.SyncState) {
	w.mu.Lock()
	previous := w.state
	w.state = state
	w.lastChecked = o.config.Clock()
	health, lastError := w.health, w.lastError
	w.mu.Unlock()

	if previous != state {
		o.log.Debugf("[%s] %s -> %s", w.account.Email, previous, state)
		o.persistStatus(ctx, w, state, health, lastError)
	}
}

func (o *Orchestrator) persistStatus(ctx context.Context, w *worker, state enum.SyncState, health enum.AccountHealth, lastError string) {
	if o.deps.Accounts == nil {
		return
	}
	// status writes must land even while the worker is shutting down
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.deps.Accounts.UpdateStatus(ctx, w.account.ID, state, health, lastError); err != nil {
		o.log.Warnf("[%s] Failed to persist account status: %v", w.account.Email, err)
	}
}

// run owns the account's connection for the worker's lifetime.
func (o *Orchestrator) run(ctx context.Context, w *worker) {
	defer close(w.done)

	o.log.Infof("[%s] Starting account worker with folders %v", w.account.Email, []string(w.account.Folders))
	b := o.config.Backoff.NewBackoff()

	for {
		err := o.runSafely(ctx, w)
		if ctx.Err() != nil {
			o.setState(ctx, w, enum.SyncStateDisconnected)
			o.log.Infof("[%s] Account worker stopped", w.account.Email)
			return
		}

		o.recordFailure(ctx, w, err)
		o.settleBackoff(w, b)
		o.setState(ctx, w, enum.SyncStateReconnecting)

		wait := b.Duration()
		o.log.Warnf("[%s] Sync session ended: %v. Reconnecting in %v", w.account.Email, err, wait)
		if backoffpolicy.Wait(ctx, wait, w.trigger) != nil {
			o.setState(ctx, w, enum.SyncStateDisconnected)
			o.log.Infof("[%s] Account worker stopped", w.account.Email)
			return
		}
	}
}

// settleBackoff starts the reconnect delay over only when the session that
// just ended stayed watching for at least StableSession.
func (o *Orchestrator) settleBackoff(w *worker, b *backoff.Backoff) {
	w.mu.Lock()
	since := w.watchingSince
	w.watchingSince = time.Time{}
	w.mu.Unlock()

	if !since.IsZero() && o.config.Clock().Sub(since) >= o.config.StableSession {
		b.Reset()
	}
}

// runSafely turns a panic in a session into an ordinary retryable failure.
func (o *Orchestrator) runSafely(ctx context.Context, w *worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			span := opentracing.GlobalTracer().StartSpan("panic-recovery")
			span.LogKV("event", "error", "error.object", r, "stack", string(debug.Stack()))
			span.SetTag("error", true)
			span.Finish()
			o.log.Errorf("[%s] Recovered from panic: %v", w.account.Email, r)
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return o.runSession(ctx, w)
}

func (o *Orchestrator) runSession(ctx context.Context, w *worker) error {
	span, ctx := tracing.StartTracerSpan(ctx, "Orchestrator.runSession")
	defer span.Finish()
	tracing.SetDefaultWorkerSpanTags(ctx, span)
	tracing.TagAccount(span, w.account.Email)

	o.setState(ctx, w, enum.SyncStateConnecting)
	conn, err := o.deps.Transport.Connect(ctx, w.account)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			o.log.Debugf("[%s] Close: %v", w.account.Email, closeErr)
		}
	}()

	o.setState(ctx, w, enum.SyncStateInitialSync)
	if err := o.syncAllFolders(ctx, w, conn); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	o.markHealthy(w)
	o.setState(ctx, w, enum.SyncStateWatching)

	primary := w.account.PrimaryFolder()
	for {
		handle, err := conn.SelectFolder(ctx, primary)
		if err != nil {
			var folderErr *mailerrors.FolderError
			if !errors.As(err, &folderErr) {
				tracing.TraceErr(span, err)
				return err
			}
			// nothing to idle on, fall back to waiting for triggers and the periodic sweep
			o.log.Warnf("[%s][%s] Cannot watch folder: %v", w.account.Email, primary, err)
			if err := backoffpolicy.Wait(ctx, o.config.Backoff.Cap, w.trigger); err != nil {
				return err
			}
		} else if err := o.watchOnce(ctx, w, conn, handle); err != nil {
			tracing.TraceErr(span, err)
			return err
		}

		if err := o.syncAllFolders(ctx, w, conn); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}
}

// watchOnce returns nil on new mail or a manual trigger.
func (o *Orchestrator) watchOnce(ctx context.Context, w *worker, conn interfaces.MailConnection, handle *interfaces.FolderHandle) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		select {
		case <-w.trigger:
			cancel()
		case <-watchCtx.Done():
		}
	}()

	err := conn.Watch(watchCtx, handle)
	cancel()
	<-relayDone

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && errors.Is(err, context.Canceled) {
		o.log.Debugf("[%s] Manual sync requested", w.account.Email)
		return nil
	}
	return err
}

func (o *Orchestrator) markHealthy(w *worker) {
	w.mu.Lock()
	recovered := !w.failingSince.IsZero()
	w.failingSince = time.Time{}
	w.alerted = false
	w.health = enum.AccountHealthOK
	w.lastError = ""
	w.watchingSince = o.config.Clock()
	w.mu.Unlock()

	if recovered {
		o.log.Infof("[%s] Account recovered", w.account.Email)
	}
}

// recordFailure updates health after a failed session and raises the
// degraded alert once per failure streak.
func (o *Orchestrator) recordFailure(ctx context.Context, w *worker, err error) {
	now := o.config.Clock()

	w.mu.Lock()
	if w.failingSince.IsZero() {
		w.failingSince = now
	}
	if err != nil {
		w.lastError = err.Error()
	}
	if mailerrors.IsAuthError(err) {
		w.health = enum.AccountHealthError
	}
	failingFor := now.Sub(w.failingSince)
	raiseAlert := false
	if failingFor >= o.config.MaxRetryDuration {
		w.health = enum.AccountHealthDegraded
		if !w.alerted {
			w.alerted = true
			raiseAlert = true
		}
	}
	failingSince, lastError := w.failingSince, w.lastError
	w.mu.Unlock()

	if mailerrors.IsAuthError(err) {
		o.log.Errorf("[%s] Authentication failed: %v", w.account.Email, err)
	}
	if !raiseAlert {
		return
	}

	o.log.Errorf("[%s] ALERT account degraded: failing for %v, last error: %s", w.account.Email, failingFor.Round(time.Second), lastError)
	if o.deps.Publisher == nil {
		return
	}
	event := dto.AccountDegraded{
		AccountId:    w.account.ID,
		Email:        w.account.Email,
		LastError:    lastError,
		FailingSince: failingSince,
		Duration:     failingFor,
	}
	publishCtx := utils.SetAccountIdInContext(context.WithoutCancel(ctx), w.account.ID)
	if err := o.deps.Publisher.PublishFanoutEvent(publishCtx, w.account.ID, enum.ACCOUNT, event); err != nil {
		o.log.Warnf("[%s] Failed to publish degraded event: %v", w.account.Email, err)
	}
}
