package imap

import (
	"context"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/interfaces"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
)

type connection struct {
	client  *client.Client
	account string
	log     logger.Logger
	opts    Options

	updates  chan client.Update
	signal   chan struct{}
	selected string
	// messages in the selected folder as last seen, read by the updates loop
	lastSeen atomic.Uint32

	closeOnce sync.Once
	closeErr  error
}

func newConnection(c *client.Client, account string, log logger.Logger, opts Options) *connection {
	conn := &connection{
		client:  c,
		account: account,
		log:     log,
		opts:    opts,
		updates: make(chan client.Update, updatesBuffer),
		signal:  make(chan struct{}, 1),
	}
	c.Updates = conn.updates
	go conn.processUpdates()
	return conn
}

func (c *connection) SelectFolder(ctx context.Context, name string) (*interfaces.FolderHandle, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnection.SelectFolder")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, c.account)
	tracing.TagFolder(span, name)

	c.client.Timeout = commandTimeout
	mbox, err := c.client.Select(name, true)
	c.client.Timeout = 0
	if err != nil {
		if isConnectionLost(err) {
			err = connectionLost(err)
		} else {
			err = mailerrors.NewFolderError(name, err)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	c.selected = name
	c.lastSeen.Store(mbox.Messages)

	c.log.Debugf("[%s][%s] Selected folder - Messages: %d, UidNext: %d", c.account, name, mbox.Messages, mbox.UidNext)
	span.SetTag("messages.total", mbox.Messages)

	return &interfaces.FolderHandle{
		Name:        name,
		Messages:    mbox.Messages,
		UidNext:     mbox.UidNext,
		UidValidity: mbox.UidValidity,
	}, nil
}

func (c *connection) ensureSelected(ctx context.Context, folder string) error {
	if c.selected == folder {
		return nil
	}
	_, err := c.SelectFolder(ctx, folder)
	return err
}

// ListNew returns the UIDs above cursor in ascending order.
func (c *connection) ListNew(ctx context.Context, folder *interfaces.FolderHandle, cursor uint32) ([]interfaces.MessageRef, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnection.ListNew")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, c.account)
	tracing.TagFolder(span, folder.Name)
	span.SetTag("cursor", cursor)

	if folder.Messages == 0 {
		return []interfaces.MessageRef{}, nil
	}
	if err := c.ensureSelected(ctx, folder.Name); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	uidRange := new(imap.SeqSet)
	uidRange.AddRange(cursor+1, 0) // From cursor+1 to *
	criteria.Uid = uidRange

	c.client.Timeout = commandTimeout
	uids, err := c.client.UidSearch(criteria)
	c.client.Timeout = 0
	if err != nil {
		if isConnectionLost(err) {
			err = connectionLost(err)
		} else {
			err = errors.Wrapf(err, "search %s", folder.Name)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	newUIDs := filterNewUIDs(uids, cursor)
	span.SetTag("messages.new", len(newUIDs))

	refs := make([]interfaces.MessageRef, 0, len(newUIDs))
	for _, uid := range newUIDs {
		refs = append(refs, interfaces.MessageRef{Folder: folder.Name, UID: uid})
	}
	return refs, nil
}

// filterNewUIDs drops UIDs at or below cursor. A "n:*" search always
// matches the last message even when n is beyond it.
func filterNewUIDs(uids []uint32, cursor uint32) []uint32 {
	seen := make(map[uint32]bool, len(uids))
	result := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if uid <= cursor || seen[uid] {
			continue
		}
		seen[uid] = true
		result = append(result, uid)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// FetchRaw returns the full RFC 822 source without setting \Seen.
func (c *connection) FetchRaw(ctx context.Context, ref interfaces.MessageRef) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnection.FetchRaw")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, c.account)
	tracing.TagFolder(span, ref.Folder)
	span.SetTag("uid", ref.UID)

	if err := c.ensureSelected(ctx, ref.Folder); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(ref.UID)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	c.client.Timeout = 2 * commandTimeout
	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	type fetched struct {
		raw []byte
		err error
	}
	collected := make(chan fetched, 1)
	go func() {
		var result fetched
		for msg := range messages {
			if msg == nil || result.raw != nil {
				continue
			}
			body := msg.GetBody(section)
			if body == nil {
				continue
			}
			result.raw, result.err = io.ReadAll(body)
		}
		collected <- result
	}()

	select {
	case <-ctx.Done():
		c.terminate()
		tracing.TraceErr(span, ctx.Err())
		return nil, ctx.Err()
	case result := <-collected:
		c.client.Timeout = 0
		fetchErr := <-done
		switch {
		case fetchErr != nil && isConnectionLost(fetchErr):
			fetchErr = connectionLost(fetchErr)
		case fetchErr != nil:
			fetchErr = mailerrors.NewFetchError(ref.Folder, ref.UID, fetchErr)
		case result.err != nil:
			fetchErr = mailerrors.NewFetchError(ref.Folder, ref.UID, result.err)
		case result.raw == nil:
			fetchErr = mailerrors.NewFetchError(ref.Folder, ref.UID, errors.New("message not returned by server"))
		}
		if fetchErr != nil {
			tracing.TraceErr(span, fetchErr)
			return nil, fetchErr
		}
		span.SetTag("size", len(result.raw))
		return result.raw, nil
	}
}

// Close logs out, falling back to dropping the socket after the logout timeout.
func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		done := make(chan error, 1)
		c.client.Timeout = c.opts.LogoutTimeout
		go func() {
			done <- c.client.Logout()
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) && !isConnectionLost(err) {
				c.log.Warnf("[%s] Error during logout: %v", c.account, err)
				c.closeErr = err
			}
		case <-time.After(c.opts.LogoutTimeout):
			c.log.Warnf("[%s] Logout timed out", c.account)
			c.terminate()
		}
	})
	return c.closeErr
}

func (c *connection) terminate() {
	if err := c.client.Terminate(); err != nil && !isConnectionLost(err) {
		c.log.Debugf("[%s] terminate: %v", c.account, err)
	}
}
