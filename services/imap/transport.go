package imap

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/config"
	"github.com/customeros/inboxsync/internal/enum"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
)

const (
	DefaultLogoutTimeout = 5 * time.Second
	commandTimeout       = 30 * time.Second
	updatesBuffer        = 100
)

type Options struct {
	ConnectTimeout   time.Duration
	IdleRefresh      time.Duration
	IdlePollInterval time.Duration
	LogoutTimeout    time.Duration
}

func OptionsFromConfig(cfg *config.SyncConfig) Options {
	return Options{
		ConnectTimeout:   cfg.ConnectTimeout,
		IdleRefresh:      cfg.IdleRefreshTimeout,
		IdlePollInterval: cfg.IdlePollInterval,
		LogoutTimeout:    DefaultLogoutTimeout,
	}
}

type IMAPTransport struct {
	log  logger.Logger
	opts Options
}

func NewIMAPTransport(log logger.Logger, opts Options) interfaces.MailTransport {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.LogoutTimeout <= 0 {
		opts.LogoutTimeout = DefaultLogoutTimeout
	}
	return &IMAPTransport{log: log, opts: opts}
}

type dialResult struct {
	client *client.Client
	err    error
}

// Connect dials, upgrades according to the account security setting and logs in.
func (t *IMAPTransport) Connect(ctx context.Context, account *models.Account) (interfaces.MailConnection, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPTransport.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.Email)
	span.SetTag("server", account.Host)
	span.SetTag("port", account.Port)
	span.SetTag("security", string(account.Security))

	connectCtx, cancel := context.WithTimeout(ctx, t.opts.ConnectTimeout)
	defer cancel()

	result := make(chan dialResult, 1)
	go func() {
		c, err := t.dialAndLogin(account)
		result <- dialResult{client: c, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			tracing.TraceErr(span, r.err)
			return nil, r.err
		}
		t.log.Infof("[%s] Successfully connected to %s:%d", account.Email, account.Host, account.Port)
		return newConnection(r.client, account.Email, t.log, t.opts), nil
	case <-connectCtx.Done():
		// the dial goroutine may still succeed, so close whatever it returns
		go func() {
			if r := <-result; r.client != nil {
				_ = r.client.Terminate()
			}
		}()
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		err := mailerrors.NewConnectionError(mailerrors.ConnectionErrorTimeout, account.Email, mailerrors.ErrConnectionTimeout)
		tracing.TraceErr(span, err)
		return nil, err
	}
}

func (t *IMAPTransport) dialAndLogin(account *models.Account) (*client.Client, error) {
	serverAddr := fmt.Sprintf("%s:%d", account.Host, account.Port)

	dialer := &net.Dialer{
		Timeout:   t.opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	tlsConfig := &tls.Config{ServerName: account.Host}

	var c *client.Client
	var err error
	switch account.Security {
	case enum.EmailSecurityNone:
		c, err = client.DialWithDialer(dialer, serverAddr)
	case enum.EmailSecurityStartTLS:
		c, err = client.DialWithDialer(dialer, serverAddr)
		if err == nil {
			if tlsErr := c.StartTLS(tlsConfig); tlsErr != nil {
				_ = c.Terminate()
				return nil, mailerrors.NewConnectionError(mailerrors.ConnectionErrorTLS, account.Email, tlsErr)
			}
		}
	default:
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	}
	if err != nil {
		return nil, mailerrors.NewConnectionError(classifyConnectError(err), account.Email, errors.Wrapf(err, "dial %s", serverAddr))
	}

	c.Timeout = t.opts.ConnectTimeout
	if err := c.Login(account.Email, account.Password); err != nil {
		_ = c.Terminate()
		kind := mailerrors.ConnectionErrorAuth
		if isConnectionLost(err) {
			kind = classifyConnectError(err)
		}
		return nil, mailerrors.NewConnectionError(kind, account.Email, errors.Wrap(err, "login"))
	}
	c.Timeout = 0

	return c, nil
}

func classifyConnectError(err error) mailerrors.ConnectionErrorKind {
	var recordErr tls.RecordHeaderError
	var verifyErr *tls.CertificateVerificationError
	var authorityErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	var netErr net.Error

	switch {
	case errors.As(err, &recordErr), errors.As(err, &verifyErr), errors.As(err, &authorityErr),
		errors.As(err, &hostnameErr), errors.As(err, &invalidErr):
		return mailerrors.ConnectionErrorTLS
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return mailerrors.ConnectionErrorTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return mailerrors.ConnectionErrorTimeout
	}
	return mailerrors.ConnectionErrorNetwork
}

// isConnectionLost checks if an error is related to connectivity
func isConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errorMsg := err.Error()
	return strings.Contains(errorMsg, "connection closed") ||
		strings.Contains(errorMsg, "i/o timeout") ||
		strings.Contains(errorMsg, "EOF") ||
		strings.Contains(errorMsg, "broken pipe") ||
		strings.Contains(errorMsg, "connection reset")
}

func connectionLost(err error) error {
	return errors.Wrap(mailerrors.ErrConnectionLost, err.Error())
}
