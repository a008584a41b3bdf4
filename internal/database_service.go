package internal

import "evcp/models"

// Database keeps the offline queue and the configuration of a charge point across restarts
type Database interface {
	WriteLogMessage(data Data) error
	SaveQueueEntry(entry *models.EnqueuedRequest) error
	DeleteQueueEntry(id string) error
	GetQueueEntries() ([]*models.EnqueuedRequest, error)
	SaveConfigurationEntry(entry *models.ConfigurationEntry) error
	GetConfigurationEntries() ([]*models.ConfigurationEntry, error)
	GetSubscriptions() ([]models.UserSubscription, error)
	AddSubscription(subscription *models.UserSubscription) error
	DeleteSubscription(subscription *models.UserSubscription) error
	Close() error
}

type Data interface {
	DataType() string
}
