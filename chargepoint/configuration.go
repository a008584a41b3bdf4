package chargepoint

import (
	"evcp/internal"
	"evcp/models"
	"evcp/ocpp/core"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	KeyHeartbeatInterval        = "HeartbeatInterval"
	KeyNumberOfConnectors       = "NumberOfConnectors"
	KeySupportedFeatureProfiles = "SupportedFeatureProfiles"
	KeyAuthorizationKey         = "AuthorizationKey"
)

// DefaultConfiguration vendor defaults seeded into every node
func DefaultConfiguration(connectors int, heartbeatSeconds int, profiles []string) []models.ConfigurationEntry {
	return []models.ConfigurationEntry{
		{Key: "AuthorizeRemoteTxRequests", Value: "false", AccessRights: models.ReadWrite},
		{Key: "AuthorizationCacheEnabled", Value: "false", AccessRights: models.ReadWrite},
		{Key: "ClockAlignedDataInterval", Value: "0", AccessRights: models.ReadWrite},
		{Key: "ConnectionTimeOut", Value: "60", AccessRights: models.ReadWrite},
		{Key: "GetConfigurationMaxKeys", Value: "50", AccessRights: models.ReadOnly},
		{Key: KeyHeartbeatInterval, Value: strconv.Itoa(heartbeatSeconds), AccessRights: models.ReadWrite},
		{Key: "LocalAuthorizeOffline", Value: "false", AccessRights: models.ReadWrite},
		{Key: "LocalPreAuthorize", Value: "false", AccessRights: models.ReadWrite},
		{Key: "MeterValuesSampledData", Value: "Energy.Active.Import.Register", AccessRights: models.ReadWrite},
		{Key: "MeterValueSampleInterval", Value: "60", AccessRights: models.ReadWrite},
		{Key: KeyNumberOfConnectors, Value: strconv.Itoa(connectors), AccessRights: models.ReadOnly},
		{Key: "ResetRetries", Value: "3", AccessRights: models.ReadWrite},
		{Key: "StopTransactionOnInvalidId", Value: "true", AccessRights: models.ReadWrite},
		{Key: KeySupportedFeatureProfiles, Value: strings.Join(profiles, ","), AccessRights: models.ReadOnly},
		{Key: "TransactionMessageAttempts", Value: "5", AccessRights: models.ReadWrite},
		{Key: "TransactionMessageRetryInterval", Value: "10", AccessRights: models.ReadWrite},
		{Key: "UnlockConnectorOnEVSideDisconnect", Value: "true", AccessRights: models.ReadWrite},
		{Key: "WebSocketPingInterval", Value: "30", AccessRights: models.ReadWrite, RebootRequired: true},
		{Key: "ChargeProfileMaxStackLevel", Value: "10", AccessRights: models.ReadOnly},
		{Key: "SecurityProfile", Value: "0", AccessRights: models.ReadWrite, RebootRequired: true},
		{Key: KeyAuthorizationKey, Value: "", AccessRights: models.WriteOnly, RebootRequired: true},
	}
}

// ConfigurationStore keyed configuration entries with access rights
type ConfigurationStore struct {
	mutex    sync.RWMutex
	entries  map[string]*models.ConfigurationEntry
	database internal.Database
	logger   internal.LogHandler
	onChange []func(key, value string)
}

func NewConfigurationStore(defaults []models.ConfigurationEntry, logger internal.LogHandler) *ConfigurationStore {
	store := &ConfigurationStore{
		entries: make(map[string]*models.ConfigurationEntry),
		logger:  logger,
	}
	for _, entry := range defaults {
		e := entry
		store.entries[e.Key] = &e
	}
	return store
}

// SetDatabase attaches persistence and loads values stored by a previous run
func (s *ConfigurationStore) SetDatabase(database internal.Database) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.database = database
	stored, err := database.GetConfigurationEntries()
	if err != nil {
		return err
	}
	for _, entry := range stored {
		if existing, ok := s.entries[entry.Key]; ok {
			if existing.AccessRights != models.ReadOnly {
				existing.Value = entry.Value
			}
			continue
		}
		e := *entry
		s.entries[e.Key] = &e
	}
	return nil
}

// OnChange registers fn to be called after an accepted write
func (s *ConfigurationStore) OnChange(fn func(key, value string)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Get returns all entries when keys is empty, otherwise the requested ones
// and the list of keys not present in the store
func (s *ConfigurationStore) Get(keys []string) ([]core.ConfigurationKey, []string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var found []core.ConfigurationKey
	var unknown []string
	if len(keys) == 0 {
		for _, key := range s.sortedKeys() {
			found = append(found, toConfigurationKey(s.entries[key]))
		}
		return found, nil
	}
	for _, key := range keys {
		entry, ok := s.entries[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		found = append(found, toConfigurationKey(entry))
	}
	return found, unknown
}

// Change writes value to key; see models.AccessRights for the rules applied
func (s *ConfigurationStore) Change(key, value string) core.ConfigurationStatus {
	s.mutex.Lock()
	entry, ok := s.entries[key]
	status := core.ConfigurationStatusAccepted
	switch {
	case !ok:
		entry = &models.ConfigurationEntry{Key: key, Value: value, AccessRights: models.ReadWrite}
		s.entries[key] = entry
	case entry.AccessRights == models.ReadOnly:
		s.mutex.Unlock()
		return core.ConfigurationStatusRejected
	default:
		entry.Value = value
		if entry.RebootRequired {
			status = core.ConfigurationStatusRebootRequired
		}
	}
	saved := *entry
	database := s.database
	listeners := s.onChange
	s.mutex.Unlock()

	if database != nil {
		if err := database.SaveConfigurationEntry(&saved); err != nil {
			s.logger.Error(fmt.Sprintf("saving configuration key %s", key), err)
		}
	}
	for _, listener := range listeners {
		guard(s.logger, "configuration listener", func() { listener(key, value) })
	}
	return status
}

// Value the raw value of key, also for write only entries
func (s *ConfigurationStore) Value(key string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return "", false
	}
	return entry.Value, true
}

func (s *ConfigurationStore) Entry(key string) (models.ConfigurationEntry, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return models.ConfigurationEntry{}, false
	}
	return *entry, true
}

func (s *ConfigurationStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.entries)
}

func (s *ConfigurationStore) sortedKeys() []string {
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func toConfigurationKey(entry *models.ConfigurationEntry) core.ConfigurationKey {
	key := core.ConfigurationKey{
		Key:      entry.Key,
		Readonly: entry.AccessRights == models.ReadOnly,
	}
	if entry.IsReadable() {
		value := entry.Value
		key.Value = &value
	}
	return key
}
