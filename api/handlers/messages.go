package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
)

const timeFormat = time.RFC3339

type MessagesHandler struct {
	log   logger.Logger
	index interfaces.IndexStore
}

func NewMessagesHandler(log logger.Logger, index interfaces.IndexStore) *MessagesHandler {
	return &MessagesHandler{log: log, index: index}
}

// Search answers 200 for every query. A malformed limit falls back to the default.
func (h *MessagesHandler) Search() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MessagesHandler.Search")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		query := strings.TrimSpace(c.Query("q"))
		filters := dto.SearchFilters{
			Account:  strings.TrimSpace(c.Query("account")),
			Category: enum.Category(strings.TrimSpace(c.Query("category"))),
			Folder:   strings.TrimSpace(c.Query("folder")),
		}
		if raw := c.Query("limit"); raw != "" {
			if limit, err := strconv.Atoi(raw); err == nil {
				filters.Limit = limit
			}
		}
		filters.Limit = filters.EffectiveLimit()
		span.LogKV("query", query, "account", filters.Account, "category", filters.Category.String(), "folder", filters.Folder)

		messages := h.index.Search(ctx, query, filters)
		c.JSON(http.StatusOK, dto.SearchResponse{
			Query:    query,
			Total:    len(messages),
			Messages: messages,
		})
	}
}

func (h *MessagesHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MessagesHandler.Get")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id := c.Param("id")
		message, err := h.index.Get(ctx, id)
		if err != nil {
			if errors.Is(err, mailerrors.ErrMessageNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
				return
			}
			// the index is unavailable, not the message
			tracing.TraceErr(span, err)
			h.log.Warnf("Index unavailable while getting message %s: %v", id, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "index unavailable"})
			return
		}
		c.JSON(http.StatusOK, message)
	}
}
