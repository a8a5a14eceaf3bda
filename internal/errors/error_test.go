package errors

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection lost", ErrConnectionLost, true},
		{"wrapped connection lost", errors.Wrap(ErrConnectionLost, "fetch"), true},
		{"connection error", NewConnectionError(ConnectionErrorNetwork, "a@b.c", errors.New("refused")), true},
		{"auth error", NewConnectionError(ConnectionErrorAuth, "a@b.c", errors.New("bad creds")), true},
		{"fetch error", NewFetchError("INBOX", 7, errors.New("reset")), true},
		{"index error", NewIndexError("upsert", "id", errors.New("db down")), true},
		{"folder error", NewFolderError("Archive", errors.New("no such mailbox")), false},
		{"notify error", NewNotifyError("chat", "id", errors.New("500")), false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"unknown", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, IsAuthError(errors.WithStack(NewConnectionError(ConnectionErrorAuth, "a", errors.New("x")))))
	assert.False(t, IsAuthError(NewConnectionError(ConnectionErrorTLS, "a", errors.New("x"))))
	assert.False(t, IsAuthError(ErrConnectionLost))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := NewFetchError("INBOX", 3, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "INBOX/3")
}
