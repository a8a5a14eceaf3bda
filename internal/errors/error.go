package errors

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// transport
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")

	// account registry
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")

	// index
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidInput    = errors.New("invalid input parameters")

	// event bus
	ErrPublisherClosed = errors.New("publisher closed")
)

type ConnectionErrorKind string

const (
	ConnectionErrorAuth    ConnectionErrorKind = "auth"
	ConnectionErrorTLS     ConnectionErrorKind = "tls"
	ConnectionErrorTimeout ConnectionErrorKind = "timeout"
	ConnectionErrorNetwork ConnectionErrorKind = "network"
)

// ConnectionError is returned when a mailbox connection cannot be established.
type ConnectionError struct {
	Kind    ConnectionErrorKind
	Account string
	Err     error
}

func NewConnectionError(kind ConnectionErrorKind, account string, err error) *ConnectionError {
	return &ConnectionError{Kind: kind, Account: account, Err: err}
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s (%s): %v", e.Account, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) IsAuth() bool { return e.Kind == ConnectionErrorAuth }

// FolderError means a folder cannot be selected. It only affects that folder.
type FolderError struct {
	Folder string
	Err    error
}

func NewFolderError(folder string, err error) *FolderError {
	return &FolderError{Folder: folder, Err: err}
}

func (e *FolderError) Error() string {
	return fmt.Sprintf("select folder %q: %v", e.Folder, e.Err)
}

func (e *FolderError) Unwrap() error { return e.Err }

type FetchError struct {
	Folder string
	UID    uint32
	Err    error
}

func NewFetchError(folder string, uid uint32, err error) *FetchError {
	return &FetchError{Folder: folder, UID: uid, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%d: %v", e.Folder, e.UID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type IndexError struct {
	Op  string
	Id  string
	Err error
}

func NewIndexError(op, id string, err error) *IndexError {
	return &IndexError{Op: op, Id: id, Err: err}
}

func (e *IndexError) Error() string {
	if e.Id == "" {
		return fmt.Sprintf("index %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("index %s %s: %v", e.Op, e.Id, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// NotifyError is only ever logged.
type NotifyError struct {
	Sink      string
	MessageId string
	Err       error
}

func NewNotifyError(sink, messageId string, err error) *NotifyError {
	return &NotifyError{Sink: sink, MessageId: messageId, Err: err}
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify %s for message %s: %v", e.Sink, e.MessageId, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// IsRetryable reports whether the orchestrator should back off and try again.
// Auth failures are retryable too; they change account health but not control flow.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var folderErr *FolderError
	if errors.As(err, &folderErr) {
		return false
	}
	var notifyErr *NotifyError
	if errors.As(err, &notifyErr) {
		return false
	}

	var connErr *ConnectionError
	var fetchErr *FetchError
	var indexErr *IndexError
	switch {
	case errors.Is(err, ErrConnectionLost), errors.Is(err, ErrConnectionTimeout):
		return true
	case errors.As(err, &connErr), errors.As(err, &fetchErr), errors.As(err, &indexErr):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// IsAuthError reports whether err is a ConnectionError caused by rejected credentials.
func IsAuthError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) && connErr.IsAuth()
}
