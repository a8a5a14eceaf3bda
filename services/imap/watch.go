package imap

import (
	"context"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/interfaces"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/tracing"
)

// processUpdates drains unilateral server updates for the life of the
// connection and turns message arrivals into a coalesced signal.
func (c *connection) processUpdates() {
	for {
		select {
		case <-c.client.LoggedOut():
			return
		case update := <-c.updates:
			switch u := update.(type) {
			case *client.MailboxUpdate:
				if u.Mailbox == nil {
					continue
				}
				previous := c.lastSeen.Load()
				c.lastSeen.Store(u.Mailbox.Messages)
				if u.Mailbox.Messages > previous {
					c.log.Debugf("[%s][%s] Detected %d new message(s)", c.account, u.Mailbox.Name, u.Mailbox.Messages-previous)
					c.notifyNewMail()
				}
			case *client.ExpungeUpdate:
				if n := c.lastSeen.Load(); n > 0 {
					c.lastSeen.Store(n - 1)
				}
			}
		}
	}
}

func (c *connection) notifyNewMail() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Watch idles on folder until new mail arrives. go-imap falls back to
// NOOP polling on servers without IDLE.
func (c *connection) Watch(ctx context.Context, folder *interfaces.FolderHandle) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPConnection.Watch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, c.account)
	tracing.TagFolder(span, folder.Name)

	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.signal:
		span.LogKV("signal", "pending")
		return nil
	case <-c.client.LoggedOut():
		return mailerrors.ErrConnectionLost
	default:
	}

	if err := c.ensureSelected(ctx, folder.Name); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	stop := make(chan struct{})
	done := make(chan error, 1)
	c.client.Timeout = 0
	go func() {
		done <- c.client.Idle(stop, &client.IdleOptions{
			LogoutTimeout: c.opts.IdleRefresh,
			PollInterval:  c.opts.IdlePollInterval,
		})
	}()

	select {
	case <-c.signal:
		close(stop)
		if err := c.waitIdle(done); err != nil {
			// the signal is consumed but the folder is rescanned on reconnect
			tracing.TraceErr(span, err)
			return connectionLost(err)
		}
		return nil
	case err := <-done:
		if err == nil {
			err = mailerrors.ErrConnectionLost
		} else {
			err = connectionLost(err)
		}
		tracing.TraceErr(span, err)
		return err
	case <-c.client.LoggedOut():
		close(stop)
		return mailerrors.ErrConnectionLost
	case <-ctx.Done():
		close(stop)
		if err := c.waitIdle(done); err != nil {
			c.log.Debugf("[%s][%s] IDLE did not end cleanly: %v", c.account, folder.Name, err)
		}
		return ctx.Err()
	}
}

// waitIdle waits for IDLE to finish after stop was closed, dropping the socket if it hangs.
func (c *connection) waitIdle(done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(c.opts.LogoutTimeout):
		c.terminate()
		return mailerrors.ErrConnectionTimeout
	}
}
