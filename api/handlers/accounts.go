package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
)

type AccountsHandler struct {
	log          logger.Logger
	orchestrator interfaces.SyncOrchestrator
}

func NewAccountsHandler(log logger.Logger, orchestrator interfaces.SyncOrchestrator) *AccountsHandler {
	return &AccountsHandler{log: log, orchestrator: orchestrator}
}

// TriggerSync accepts an account id or email. Known accounts always get 202,
// whether or not a rescan was already pending.
func (h *AccountsHandler) TriggerSync() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AccountsHandler.TriggerSync")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id := c.Param("id")
		tracing.TagAccount(span, id)

		if !h.orchestrator.TriggerImmediateSync(id) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found", "id": id})
			return
		}
		h.log.Infof("[%s] Manual sync requested", id)
		c.JSON(http.StatusAccepted, gin.H{"status": "sync requested", "id": id})
	}
}
