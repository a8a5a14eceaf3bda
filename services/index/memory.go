package index

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/repository"
)

// MemoryRepository is an in-process MessageRepository with the same upsert,
// ranking and claim semantics as the Postgres one. Used by tests and local runs.
type MemoryRepository struct {
	mu       sync.Mutex
	messages map[string]*models.Message
	FailNext error
}

var _ interfaces.MessageRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{messages: make(map[string]*models.Message)}
}

func (r *MemoryRepository) takeFailure() error {
	err := r.FailNext
	r.FailNext = nil
	return err
}

func (r *MemoryRepository) Upsert(_ context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}

	stored := *message
	if existing, ok := r.messages[message.ID]; ok {
		stored.IsRead = existing.IsRead
		stored.NotifiedCategory = existing.NotifiedCategory
		stored.CreatedAt = existing.CreatedAt
	}
	r.messages[message.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}

	m, ok := r.messages[id]
	if !ok {
		return nil, repository.ErrMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *MemoryRepository) Search(_ context.Context, query string, filters dto.SearchFilters) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	type scored struct {
		m     *models.Message
		score int
	}
	var hits []scored
	for _, m := range r.messages {
		if filters.Account != "" && m.Account != filters.Account {
			continue
		}
		if filters.Category != "" && m.Category != filters.Category {
			continue
		}
		if filters.Folder != "" && m.Folder != filters.Folder {
			continue
		}
		score := relevance(m, q)
		if q != "" && score == 0 {
			continue
		}
		cp := *m
		hits = append(hits, scored{m: &cp, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if !hits[i].m.ReceivedAt.Equal(hits[j].m.ReceivedAt) {
			return hits[i].m.ReceivedAt.After(hits[j].m.ReceivedAt)
		}
		return hits[i].m.ID < hits[j].m.ID
	})

	limit := filters.EffectiveLimit()
	out := make([]*models.Message, 0, limit)
	for i := 0; i < len(hits) && i < limit; i++ {
		out = append(out, hits[i].m)
	}
	return out, nil
}

func (r *MemoryRepository) ClaimNotification(_ context.Context, id string, category enum.Category) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return false, err
	}

	m, ok := r.messages[id]
	if !ok || m.NotifiedCategory != "" {
		return false, nil
	}
	m.NotifiedCategory = category.String()
	return true, nil
}

// MarkRead flips the user-owned read flag.
func (r *MemoryRepository) MarkRead(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.messages[id]; ok {
		m.IsRead = true
	}
}

func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func relevance(m *models.Message, q string) int {
	if q == "" {
		return 0
	}
	score := 0
	if strings.Contains(strings.ToLower(m.Subject), q) {
		score += 4
	}
	if strings.Contains(strings.ToLower(m.From), q) {
		score += 2
	}
	if strings.Contains(strings.ToLower(m.To), q) {
		score++
	}
	if strings.Contains(strings.ToLower(m.Body), q) {
		score++
	}
	return score
}
