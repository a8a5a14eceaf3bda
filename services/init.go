package services

import (
	"net/http"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/services/classifier"
	"github.com/customeros/inboxsync/services/decoder"
	"github.com/customeros/inboxsync/services/events"
	"github.com/customeros/inboxsync/services/imap"
	"github.com/customeros/inboxsync/services/index"
	"github.com/customeros/inboxsync/services/notifier"
	"github.com/customeros/inboxsync/services/orchestrator"
	"github.com/customeros/inboxsync/services/storage"
)

type Services struct {
	EventsService *events.EventsService
	Index         interfaces.IndexStore
	Notifier      interfaces.Notifier
	RawStorage    *storage.ObjectStorageService
	Orchestrator  *orchestrator.Orchestrator
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, events.DefaultPublisherConfig())
	if err != nil {
		return nil, err
	}

	indexStore := index.NewIndexService(log, repos.MessageRepository)

	httpClient := &http.Client{Timeout: cfg.NotifierConfig.Timeout}
	sinks := []interfaces.NotificationSink{}
	if url := cfg.NotifierConfig.SlackWebhookURL; url != "" {
		sinks = append(sinks, notifier.NewChatSink(url, httpClient, log))
	}
	if url := cfg.NotifierConfig.WebhookURL; url != "" {
		sinks = append(sinks, notifier.NewWebhookSink(url, httpClient, log))
	}
	if cfg.NotifierConfig.PublishEvents && cfg.AppConfig.RabbitMQURL != "" {
		sinks = append(sinks, notifier.NewEventSink(eventsService.Publisher))
	}
	if len(sinks) == 0 {
		log.Warn("No notification sinks configured, interested messages will only be indexed")
	}
	notifierService := notifier.NewNotifier(log, indexStore, notifier.Config{
		SinkTimeout:   cfg.NotifierConfig.Timeout,
		PreviewLength: cfg.NotifierConfig.PreviewLength,
	}, sinks...)

	rawStorage, err := storage.NewRawStorage(cfg.StorageConfig)
	if err != nil {
		return nil, err
	}
	var archive interfaces.RawArchive
	if rawStorage != nil {
		archive = storage.NewRawArchiveWithStorage(rawStorage, log)
	}

	orch := orchestrator.NewOrchestrator(log, orchestrator.Dependencies{
		Transport:  imap.NewIMAPTransport(log, imap.OptionsFromConfig(cfg.SyncConfig)),
		Decoder:    decoder.NewDecoder(log, nil),
		Classifier: classifier.NewClassifier(),
		Index:      indexStore,
		Notifier:   notifierService,
		Cursors:    repos.SyncCursorRepository,
		Accounts:   repos.AccountRepository,
		Archive:    archive,
		Publisher:  eventsService.Publisher,
	}, orchestrator.ConfigFromSync(cfg.SyncConfig))

	return &Services{
		EventsService: eventsService,
		Index:         indexStore,
		Notifier:      notifierService,
		RawStorage:    rawStorage,
		Orchestrator:  orch,
	}, nil
}
