package internal

import (
	"encoding/json"
	"errors"
	"evcp/models"
	"fmt"
	"github.com/dgraph-io/badger/v4"
	"path/filepath"
	"sort"
	"sync/atomic"
)

const (
	prefixQueue         = "queue/"
	prefixConfiguration = "configuration/"
	prefixSubscription  = "subscription/"
	prefixLog           = "log/"
)

// BadgerDB embedded store kept on the charger itself, one directory per charge point
type BadgerDB struct {
	db         *badger.DB
	logCounter atomic.Uint64
}

func NewBadgerStore(path, chargePointId string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(filepath.Join(path, chargePointId))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDB{db: db}, nil
}

// NewInMemoryBadgerStore is used in tests
func NewInMemoryBadgerStore() (*BadgerDB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDB{db: db}, nil
}

func (b *BadgerDB) Close() error {
	return b.db.Close()
}

func (b *BadgerDB) set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (b *BadgerDB) remove(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// scan decodes every value stored under prefix with decode
func (b *BadgerDB) scan(prefix string, decode func(value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(decode); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteLogMessage keeps log lines with a time ordered key
func (b *BadgerDB) WriteLogMessage(data Data) error {
	key := prefixLog
	if message, ok := data.(*FeatureLogMessage); ok {
		key += fmt.Sprintf("%020d-", message.TimeStamp.UnixNano())
	}
	key += fmt.Sprintf("%08d", b.logCounter.Add(1))
	return b.set(key, data)
}

func (b *BadgerDB) SaveQueueEntry(entry *models.EnqueuedRequest) error {
	return b.set(prefixQueue+entry.Id, entry)
}

func (b *BadgerDB) DeleteQueueEntry(id string) error {
	return b.remove(prefixQueue + id)
}

func (b *BadgerDB) GetQueueEntries() ([]*models.EnqueuedRequest, error) {
	var entries []*models.EnqueuedRequest
	err := b.scan(prefixQueue, func(value []byte) error {
		entry := &models.EnqueuedRequest{}
		if err := json.Unmarshal(value, entry); err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Sequence < entries[j].Sequence
	})
	return entries, nil
}

func (b *BadgerDB) SaveConfigurationEntry(entry *models.ConfigurationEntry) error {
	return b.set(prefixConfiguration+entry.Key, entry)
}

func (b *BadgerDB) GetConfigurationEntries() ([]*models.ConfigurationEntry, error) {
	var entries []*models.ConfigurationEntry
	err := b.scan(prefixConfiguration, func(value []byte) error {
		entry := &models.ConfigurationEntry{}
		if err := json.Unmarshal(value, entry); err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	return entries, err
}

func (b *BadgerDB) GetSubscriptions() ([]models.UserSubscription, error) {
	var subscriptions []models.UserSubscription
	err := b.scan(prefixSubscription, func(value []byte) error {
		var subscription models.UserSubscription
		if err := json.Unmarshal(value, &subscription); err != nil {
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	})
	return subscriptions, err
}

func (b *BadgerDB) AddSubscription(subscription *models.UserSubscription) error {
	return b.set(fmt.Sprintf("%s%d", prefixSubscription, subscription.ChatID), subscription)
}

func (b *BadgerDB) DeleteSubscription(subscription *models.UserSubscription) error {
	return b.remove(fmt.Sprintf("%s%d", prefixSubscription, subscription.ChatID))
}
