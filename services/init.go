package services

import (
	"github.com/dmarcwatch/reportstack/config"
	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/logger"
	"github.com/dmarcwatch/reportstack/internal/repository"
	"github.com/dmarcwatch/reportstack/services/contentstore"
	"github.com/dmarcwatch/reportstack/services/events"
	"github.com/dmarcwatch/reportstack/services/imap"
	"github.com/dmarcwatch/reportstack/services/ingestion"
	"github.com/dmarcwatch/reportstack/services/processing"
)

type Services struct {
	ContentStore      interfaces.ContentStore
	EventsPublisher   interfaces.EventPublisher
	IngestionService  *ingestion.IngestionService
	ProcessingService *processing.ProcessingService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	store, err := contentstore.NewContentStore(cfg.StorageConfig)
	if err != nil {
		return nil, err
	}

	// Events are optional; without a broker the pipeline runs silently.
	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err = events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log)
		if err != nil {
			return nil, err
		}
	}

	newFetcher := func() interfaces.MailFetcher {
		return imap.NewIMAPService(cfg.IMAPConfig, log)
	}

	return &Services{
		ContentStore:      store,
		EventsPublisher:   publisher,
		IngestionService:  ingestion.NewIngestionService(newFetcher, store, repos.IngestedReportRepository, log),
		ProcessingService: processing.NewProcessingService(store, repos.IngestedReportRepository, repos.DmarcReportRepository, publisher, log),
	}, nil
}
