package index

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/internal/enum"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
)

func newTestIndex() (*indexService, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewIndexService(logger.NewNopLogger(), repo).(*indexService), repo
}

func message(id, subject, from, body string, at time.Time) *models.Message {
	return &models.Message{
		ID:         id,
		Account:    "sales@example.com",
		Folder:     "INBOX",
		Subject:    subject,
		From:       from,
		To:         "sales@example.com",
		Body:       body,
		ReceivedAt: at,
		Category:   enum.CategoryUncategorized,
	}
}

func TestUpsert_IdempotentByID(t *testing.T) {
	idx, repo := newTestIndex()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, idx.Upsert(ctx, message("m1", "hello", "a@b.c", "", now)))
	require.NoError(t, idx.Upsert(ctx, message("m1", "hello", "a@b.c", "", now)))

	assert.Equal(t, 1, repo.Len())
}

func TestUpsert_PreservesUserOwnedState(t *testing.T) {
	idx, repo := newTestIndex()
	ctx := context.Background()

	m := message("m1", "hello", "a@b.c", "", time.Now())
	m.Category = enum.CategoryInterested
	require.NoError(t, idx.Upsert(ctx, m))
	repo.MarkRead("m1")
	claimed, err := idx.ClaimNotification(ctx, "m1", enum.CategoryInterested)
	require.NoError(t, err)
	require.True(t, claimed)

	again := message("m1", "hello (edited)", "a@b.c", "", time.Now())
	again.Category = enum.CategoryInterested
	require.NoError(t, idx.Upsert(ctx, again))

	stored, err := idx.Get(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, stored.IsRead)
	assert.Equal(t, "interested", stored.NotifiedCategory)
	assert.Equal(t, "hello (edited)", stored.Subject)
}

func TestUpsert_InvalidCategoryStoredAsUncategorized(t *testing.T) {
	idx, _ := newTestIndex()
	m := message("m1", "x", "", "", time.Now())
	m.Category = "bogus"

	require.NoError(t, idx.Upsert(context.Background(), m))
	stored, _ := idx.Get(context.Background(), "m1")
	assert.Equal(t, enum.CategoryUncategorized, stored.Category)
}

func TestUpsert_FailureIsIndexError(t *testing.T) {
	idx, repo := newTestIndex()
	repo.FailNext = errors.New("connection refused")

	err := idx.Upsert(context.Background(), message("m1", "x", "", "", time.Now()))

	var indexErr *mailerrors.IndexError
	require.ErrorAs(t, err, &indexErr)
	assert.Equal(t, "m1", indexErr.Id)
	assert.True(t, mailerrors.IsRetryable(err))
}

func TestSearch_DegradesToEmpty(t *testing.T) {
	idx, repo := newTestIndex()
	require.NoError(t, idx.Upsert(context.Background(), message("m1", "x", "", "", time.Now())))
	repo.FailNext = errors.New("index unavailable")

	result := idx.Search(context.Background(), "x", dto.SearchFilters{})

	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestSearch_RankingAndFilters(t *testing.T) {
	idx, _ := newTestIndex()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bodyOnly := message("body", "Hi", "x@y.z", "about the proposal", base.Add(3*time.Hour))
	subject := message("subject", "Proposal review", "x@y.z", "", base)
	newerSubject := message("subject-newer", "Proposal v2", "x@y.z", "", base.Add(time.Hour))
	other := message("other", "Lunch", "x@y.z", "", base.Add(5*time.Hour))
	spam := message("spam", "Proposal offer", "noreply@shop.com", "", base.Add(2*time.Hour))
	spam.Category = enum.CategorySpam
	for _, m := range []*models.Message{bodyOnly, subject, newerSubject, other, spam} {
		require.NoError(t, idx.Upsert(ctx, m))
	}

	ids := func(ms []*models.Message) []string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.ID)
		}
		return out
	}

	assert.Equal(t, []string{"spam", "subject-newer", "subject", "body"},
		ids(idx.Search(ctx, "proposal", dto.SearchFilters{})))
	assert.Equal(t, []string{"spam"},
		ids(idx.Search(ctx, "proposal", dto.SearchFilters{Category: enum.CategorySpam})))
	assert.Equal(t, []string{"other", "body", "spam", "subject-newer", "subject"},
		ids(idx.Search(ctx, "", dto.SearchFilters{})))
	assert.Len(t, idx.Search(ctx, "", dto.SearchFilters{Limit: 2}), 2)
	assert.Empty(t, idx.Search(ctx, "", dto.SearchFilters{Account: "nobody@example.com"}))
	assert.Empty(t, idx.Search(ctx, "", dto.SearchFilters{Category: "bogus"}))
}

func TestClaimNotification_ExactlyOneWinner(t *testing.T) {
	idx, _ := newTestIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, message("m1", "x", "", "", time.Now())))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := idx.ClaimNotification(ctx, "m1", enum.CategoryInterested)
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestGet_NotFound(t *testing.T) {
	idx, _ := newTestIndex()

	_, err := idx.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, mailerrors.ErrMessageNotFound)
}
