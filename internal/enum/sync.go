package enum

type SyncState string

const (
	SyncStateDisconnected SyncState = "disconnected"
	SyncStateConnecting   SyncState = "connecting"
	SyncStateInitialSync  SyncState = "initial_sync"
	SyncStateWatching     SyncState = "watching"
	SyncStateReconnecting SyncState = "reconnecting"
)

func (s SyncState) String() string {
	return string(s)
}

type AccountHealth string

const (
	AccountHealthOK       AccountHealth = "ok"
	AccountHealthError    AccountHealth = "error"
	AccountHealthDegraded AccountHealth = "degraded"
)

func (h AccountHealth) String() string {
	return string(h)
}

type EntityType string

const (
	RAW_EMAIL    EntityType = "RAW_EMAIL"
	ACCOUNT      EntityType = "ACCOUNT"
	NOTIFICATION EntityType = "NOTIFICATION"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
