package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/customeros/inboxsync/interfaces"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

type accountStatusResponse struct {
	AccountID   string                          `json:"accountId"`
	Email       string                          `json:"email"`
	State       string                          `json:"state"`
	Health      string                          `json:"health"`
	LastError   string                          `json:"lastError,omitempty"`
	LastChecked string                          `json:"lastChecked"`
	Folders     map[string]folderStatusResponse `json:"folders"`
}

type folderStatusResponse struct {
	Cursor   uint32 `json:"cursor"`
	LastSync string `json:"lastSync,omitempty"`
}

// Status returns the sync state of every account, ordered by email.
func Status(orchestrator interfaces.SyncOrchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses := orchestrator.Status()

		accounts := make([]accountStatusResponse, 0, len(statuses))
		for _, s := range statuses {
			folders := make(map[string]folderStatusResponse, len(s.Folders))
			for name, f := range s.Folders {
				fs := folderStatusResponse{Cursor: f.Cursor}
				if !f.LastSync.IsZero() {
					fs.LastSync = f.LastSync.UTC().Format(timeFormat)
				}
				folders[name] = fs
			}
			accounts = append(accounts, accountStatusResponse{
				AccountID:   s.AccountID,
				Email:       s.Email,
				State:       s.State,
				Health:      s.Health,
				LastError:   s.LastError,
				LastChecked: s.LastChecked.UTC().Format(timeFormat),
				Folders:     folders,
			})
		}
		sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })

		c.JSON(http.StatusOK, gin.H{"accounts": accounts})
	}
}
