package dto

import (
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
)

const (
	DefaultSearchLimit = 100
	MaxSearchLimit     = 500
)

type SearchFilters struct {
	Account  string        `form:"account" json:"account,omitempty"`
	Category enum.Category `form:"category" json:"category,omitempty"`
	Folder   string        `form:"folder" json:"folder,omitempty"`
	Limit    int           `form:"limit" json:"limit,omitempty"`
}

// EffectiveLimit clamps Limit into [1, MaxSearchLimit], defaulting when unset.
func (f SearchFilters) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultSearchLimit
	case f.Limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return f.Limit
	}
}

type SearchResponse struct {
	Query    string            `json:"query"`
	Total    int               `json:"total"`
	Messages []*models.Message `json:"messages"`
}
