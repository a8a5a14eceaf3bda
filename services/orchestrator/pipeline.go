package orchestrator

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

type reasoner interface {
	Reason(message *models.Message) string
}

// syncAllFolders scans every configured folder from its cursor. A folder
// that cannot be selected is skipped.
func (o *Orchestrator) syncAllFolders(ctx context.Context, w *worker, conn interfaces.MailConnection) error {
	w.drainTrigger()

	for _, folder := range w.account.Folders {
		err := o.syncFolder(ctx, w, conn, folder)
		if err == nil {
			continue
		}
		var folderErr *mailerrors.FolderError
		if errors.As(err, &folderErr) {
			o.log.Warnf("[%s][%s] Skipping folder: %v", w.account.Email, folder, err)
			continue
		}
		return err
	}
	return nil
}

func (o *Orchestrator) syncFolder(ctx context.Context, w *worker, conn interfaces.MailConnection, folder string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Orchestrator.syncFolder")
	defer span.Finish()
	tracing.SetDefaultWorkerSpanTags(ctx, span)
	tracing.TagAccount(span, w.account.Email)
	tracing.TagFolder(span, folder)

	handle, err := conn.SelectFolder(ctx, folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	cursor, err := o.folderCursor(ctx, w, handle)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.SetTag("cursor", cursor)

	refs, err := conn.ListNew(ctx, handle, cursor)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.SetTag("messages.new", len(refs))
	if len(refs) > 0 {
		o.log.Infof("[%s][%s] Found %d new message(s) since UID %d", w.account.Email, folder, len(refs), cursor)
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ref.UID <= cursor {
			continue
		}
		if err := o.processMessage(ctx, w, conn, ref); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		cursor = ref.UID
	}

	w.folderAdvanced(folder, cursor, o.config.Clock())
	return nil
}

// folderCursor returns the UID to list from. A changed UIDVALIDITY
// invalidates the stored cursor and the folder is scanned from the start.
func (o *Orchestrator) folderCursor(ctx context.Context, w *worker, handle *interfaces.FolderHandle) (uint32, error) {
	stored, err := o.deps.Cursors.GetCursor(ctx, w.account.ID, handle.Name)
	if err != nil {
		return 0, mailerrors.NewIndexError("cursor", handle.Name, err)
	}
	cursor := stored.LastUID
	if handle.UidValidity == 0 || handle.UidValidity == stored.UidValidity {
		return cursor, nil
	}

	reset := stored.UidValidity != 0
	if reset {
		o.log.Warnf("[%s][%s] UIDVALIDITY changed from %d to %d, rescanning folder from the start",
			w.account.Email, handle.Name, stored.UidValidity, handle.UidValidity)
		cursor = 0
	}
	if err := o.deps.Cursors.SetUidValidity(ctx, w.account.ID, handle.Name, handle.UidValidity, reset); err != nil {
		return 0, mailerrors.NewIndexError("cursor", handle.Name, err)
	}
	if reset {
		w.folderReset(handle.Name)
	}
	return cursor, nil
}

// processMessage fetches, decodes, classifies and indexes one message, then
// moves the cursor past it. The cursor only advances after the upsert lands.
func (o *Orchestrator) processMessage(ctx context.Context, w *worker, conn interfaces.MailConnection, ref interfaces.MessageRef) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Orchestrator.processMessage")
	defer span.Finish()
	tracing.SetDefaultWorkerSpanTags(ctx, span)
	span.SetTag("uid", ref.UID)

	raw, err := conn.FetchRaw(ctx, ref)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	message := o.deps.Decoder.Decode(raw, w.account.Email, ref.Folder, ref.UID)
	message.Category = o.deps.Classifier.Classify(message)
	if r, ok := o.deps.Classifier.(reasoner); ok {
		message.ClassificationReason = r.Reason(message)
	}
	tracing.TagEntity(span, message.ID)
	span.SetTag("category", message.Category.String())

	err = o.config.Backoff.Retry(ctx, o.config.IndexMaxAttempts, mailerrors.IsRetryable, func(ctx context.Context) error {
		return o.deps.Index.Upsert(ctx, message)
	})
	if err != nil {
		o.log.Errorf("[%s][%s] Failed to index UID %d: %v", w.account.Email, ref.Folder, ref.UID, err)
		tracing.TraceErr(span, err)
		return err
	}

	if o.deps.Archive != nil {
		if err := o.deps.Archive.Store(ctx, message, raw); err != nil {
			tracing.TraceErr(span, err)
		}
	}

	o.deps.Notifier.Notify(ctx, message)

	if err := o.deps.Cursors.AdvanceCursor(ctx, w.account.ID, ref.Folder, ref.UID); err != nil {
		err = mailerrors.NewIndexError("cursor", message.ID, err)
		tracing.TraceErr(span, err)
		return err
	}

	o.publishIndexed(ctx, w, message)
	o.log.Debugf("[%s][%s] Indexed UID %d as %s", w.account.Email, ref.Folder, ref.UID, message.Category)
	return nil
}

func (o *Orchestrator) publishIndexed(ctx context.Context, w *worker, message *models.Message) {
	if o.deps.Publisher == nil {
		return
	}
	event := dto.MessageIndexed{
		MessageId:  message.ID,
		AccountId:  w.account.ID,
		Account:    message.Account,
		Folder:     message.Folder,
		ServerSeq:  message.ServerSeq,
		Category:   message.Category,
		ReceivedAt: message.ReceivedAt,
	}
	ctx = utils.SetAccountIdInContext(ctx, w.account.ID)
	if err := o.deps.Publisher.PublishFanoutEvent(ctx, message.ID, enum.RAW_EMAIL, event); err != nil {
		o.log.Warnf("[%s][%s] Failed to publish indexed event for %s: %v", w.account.Email, message.Folder, message.ID, err)
	}
}
