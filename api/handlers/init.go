package handlers

import (
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
)

type APIHandlers struct {
	Messages *MessagesHandler
	Accounts *AccountsHandler
}

func InitHandlers(log logger.Logger, index interfaces.IndexStore, orchestrator interfaces.SyncOrchestrator) *APIHandlers {
	return &APIHandlers{
		Messages: NewMessagesHandler(log, index),
		Accounts: NewAccountsHandler(log, orchestrator),
	}
}
