package utils

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageDocumentID_Deterministic(t *testing.T) {
	a := MessageDocumentID("alice@example.com", "INBOX", 42)
	b := MessageDocumentID("alice@example.com", "INBOX", 42)

	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestMessageDocumentID_DistinctInputs(t *testing.T) {
	base := MessageDocumentID("alice@example.com", "INBOX", 42)

	assert.NotEqual(t, base, MessageDocumentID("alice@example.com", "INBOX", 43))
	assert.NotEqual(t, base, MessageDocumentID("alice@example.com", "Sent", 42))
	assert.NotEqual(t, base, MessageDocumentID("bob@example.com", "INBOX", 42))
	// separator keeps concatenation ambiguity out
	assert.NotEqual(t, MessageDocumentID("ab", "c", 1), MessageDocumentID("a", "bc", 1))
}

func TestGenerateEventID(t *testing.T) {
	id := GenerateEventID("evt")
	require.True(t, strings.HasPrefix(id, "evt_"))
	assert.Len(t, id, len("evt_")+16)
	assert.NotEqual(t, id, GenerateEventID("evt"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hel...", Truncate("hello", 3))
	assert.Equal(t, "", Truncate("hello", 0))
	assert.Equal(t, "héé...", Truncate("hééllo", 3))
}

func TestStringToSlice(t *testing.T) {
	assert.Equal(t, []string{}, StringToSlice(""))
	assert.Equal(t, []string{"INBOX", "Sent"}, StringToSlice("INBOX, Sent,"))
}

func TestExtractEmailAddress(t *testing.T) {
	assert.Equal(t, "jane@acme.com", ExtractEmailAddress("Jane Doe <jane@acme.com>"))
	assert.Equal(t, "jane@acme.com", ExtractEmailAddress(" jane@acme.com "))
	assert.Equal(t, "acme.com", ExtractDomainFromEmail("Jane <Jane@ACME.com>"))
	assert.Equal(t, "", ExtractDomainFromEmail("not-an-email"))
}

func TestSetAccountIdInContext(t *testing.T) {
	ctx := WithCustomContext(context.Background(), &CustomContext{AppSource: "test"})
	child := SetAccountIdInContext(ctx, "acc-1")

	assert.Equal(t, "acc-1", GetAccountIdFromContext(child))
	assert.Equal(t, "test", GetAppSourceFromContext(child))
	assert.Equal(t, "", GetAccountIdFromContext(ctx))
}
