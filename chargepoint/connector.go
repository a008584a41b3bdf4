package chargepoint

import (
	"evcp/models"
	"evcp/ocpp/core"
	"evcp/ocpp/reservation"
	"evcp/types"
	"sort"
	"sync"
	"time"
)

// Connector one outlet of the charge point; all methods are safe for concurrent use
type Connector struct {
	mutex             sync.Mutex
	id                int
	maxPower          int
	maxCapacity       int
	availability      core.AvailabilityType
	isReserved        bool
	reservationId     int
	reservedIdTag     string
	reservationExpiry time.Time
	isCharging        bool
	idTag             string
	idTagInfo         *types.IdTagInfo
	transactionId     int
	hasTransaction    bool
	chargingProfile   *types.ChargingProfile
	startTimestamp    time.Time
	stopTimestamp     time.Time
	meterValue        int
	meterStart        int
	meterStop         int
}

// Session describes a transaction started or stopped on a connector
type Session struct {
	ConnectorId   int
	IdTag         string
	TransactionId int
	MeterStart    int
	MeterStop     int
	StartTime     time.Time
	StopTime      time.Time
	ReservationId *int
}

func NewConnector(id, maxPower, maxCapacity int) *Connector {
	return &Connector{
		id:           id,
		maxPower:     maxPower,
		maxCapacity:  maxCapacity,
		availability: core.AvailabilityTypeOperative,
	}
}

func (c *Connector) Id() int {
	return c.id
}

func (c *Connector) status() core.ChargePointStatus {
	switch {
	case c.availability == core.AvailabilityTypeInoperative:
		return core.ChargePointStatusUnavailable
	case c.isCharging:
		return core.ChargePointStatusCharging
	case c.isReserved:
		return core.ChargePointStatusReserved
	default:
		return core.ChargePointStatusAvailable
	}
}

func (c *Connector) Status() core.ChargePointStatus {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.status()
}

func (c *Connector) IsCharging() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.isCharging
}

func (c *Connector) TransactionId() (int, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.transactionId, c.hasTransaction
}

// BeginTransaction moves an operative, idle connector into charging.
// A reservation is consumed when idTag matches it, otherwise it blocks other tags.
func (c *Connector) BeginTransaction(idTag string, now time.Time) (*Session, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.availability == core.AvailabilityTypeInoperative || c.isCharging {
		return nil, false
	}
	session := &Session{ConnectorId: c.id, IdTag: idTag, StartTime: now, MeterStart: c.meterValue}
	if c.isReserved {
		if c.reservedIdTag != "" && c.reservedIdTag != idTag && !c.reservationExpired(now) {
			return nil, false
		}
		reservationId := c.reservationId
		session.ReservationId = &reservationId
		c.clearReservation()
	}
	c.isCharging = true
	c.idTag = idTag
	c.idTagInfo = nil
	c.transactionId = 0
	c.hasTransaction = false
	c.startTimestamp = now
	c.meterStart = c.meterValue
	c.stopTimestamp = time.Time{}
	c.meterStop = 0
	return session, true
}

// ConfirmTransaction stores the transaction id assigned to the session started at start with idTag
func (c *Connector) ConfirmTransaction(idTag string, start time.Time, transactionId int, info *types.IdTagInfo) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.matchesPendingSession(idTag, start) {
		return false
	}
	c.transactionId = transactionId
	c.hasTransaction = true
	c.idTagInfo = info
	return true
}

// AbortTransaction drops a session whose StartTransaction never got an answer
func (c *Connector) AbortTransaction(idTag string, start time.Time) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.matchesPendingSession(idTag, start) {
		return false
	}
	c.isCharging = false
	c.idTag = ""
	c.stopTimestamp = time.Now()
	return true
}

// matchesPendingSession timestamps travel with second precision
func (c *Connector) matchesPendingSession(idTag string, start time.Time) bool {
	return c.isCharging && !c.hasTransaction && c.idTag == idTag && c.startTimestamp.Unix() == start.Unix()
}

// EndTransaction stops charging; it fails while the transaction id is still unknown
func (c *Connector) EndTransaction(now time.Time) (*Session, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.isCharging {
		return nil, ErrNotCharging
	}
	if !c.hasTransaction {
		return nil, ErrTransactionPending
	}
	return c.endTransaction(now), nil
}

// EndTransactionIf stops charging only when the connector holds transactionId
func (c *Connector) EndTransactionIf(transactionId int, now time.Time) (*Session, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.isCharging || !c.hasTransaction || c.transactionId != transactionId {
		return nil, false
	}
	return c.endTransaction(now), true
}

func (c *Connector) endTransaction(now time.Time) *Session {
	c.isCharging = false
	c.stopTimestamp = now
	c.meterStop = c.meterValue
	session := &Session{
		ConnectorId:   c.id,
		IdTag:         c.idTag,
		TransactionId: c.transactionId,
		MeterStart:    c.meterStart,
		MeterStop:     c.meterStop,
		StartTime:     c.startTimestamp,
		StopTime:      now,
	}
	c.idTag = ""
	c.idTagInfo = nil
	c.hasTransaction = false
	c.transactionId = 0
	if c.chargingProfile != nil && c.chargingProfile.TransactionId == session.TransactionId && session.TransactionId != 0 {
		c.chargingProfile = nil
	}
	return session
}

func (c *Connector) holdsTransaction(transactionId int) bool {
	return c.isCharging && c.hasTransaction && c.transactionId == transactionId
}

func (c *Connector) SetAvailability(availability core.AvailabilityType) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.availability = availability
}

func (c *Connector) Availability() core.AvailabilityType {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.availability
}

func (c *Connector) Reserve(reservationId int, idTag string, expiry time.Time, now time.Time) reservation.ReservationStatus {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.availability == core.AvailabilityTypeInoperative {
		return reservation.ReservationStatusUnavailable
	}
	if c.isCharging {
		return reservation.ReservationStatusOccupied
	}
	if c.isReserved && c.reservationId != reservationId && !c.reservationExpired(now) {
		return reservation.ReservationStatusOccupied
	}
	c.isReserved = true
	c.reservationId = reservationId
	c.reservedIdTag = idTag
	c.reservationExpiry = expiry
	return reservation.ReservationStatusAccepted
}

func (c *Connector) CancelReservation(reservationId int) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.isReserved || c.reservationId != reservationId {
		return false
	}
	c.clearReservation()
	return true
}

func (c *Connector) clearReservation() {
	c.isReserved = false
	c.reservationId = 0
	c.reservedIdTag = ""
	c.reservationExpiry = time.Time{}
}

func (c *Connector) reservationExpired(now time.Time) bool {
	return !c.reservationExpiry.IsZero() && now.After(c.reservationExpiry)
}

func (c *Connector) SetChargingProfile(profile *types.ChargingProfile) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.chargingProfile = profile
}

func (c *Connector) ChargingProfile() *types.ChargingProfile {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.chargingProfile
}

// ClearChargingProfile removes the installed profile when match selects it
func (c *Connector) ClearChargingProfile(match func(connectorId int, profile *types.ChargingProfile) bool) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.chargingProfile == nil || !match(c.id, c.chargingProfile) {
		return false
	}
	c.chargingProfile = nil
	return true
}

// AddMeterValue advances the energy register by wh and returns the new reading
func (c *Connector) AddMeterValue(wh int) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.meterValue += wh
	return c.meterValue
}

func (c *Connector) MeterValue() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.meterValue
}

// Snapshot copies the connector state
func (c *Connector) Snapshot(chargePointId string) models.Connector {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	snapshot := models.Connector{
		Id:             c.id,
		ChargePointId:  chargePointId,
		Availability:   string(c.availability),
		Status:         string(c.status()),
		MaxPower:       c.maxPower,
		MaxCapacity:    c.maxCapacity,
		IsReserved:     c.isReserved,
		ReservationId:  c.reservationId,
		IsCharging:     c.isCharging,
		IdTag:          c.idTag,
		TransactionId:  c.transactionId,
		HasTransaction: c.hasTransaction,
		MeterValue:     c.meterValue,
		MeterStart:     c.meterStart,
		MeterStop:      c.meterStop,
	}
	if c.idTagInfo != nil {
		snapshot.AuthStatus = string(c.idTagInfo.Status)
	}
	if !c.startTimestamp.IsZero() {
		start := c.startTimestamp
		snapshot.StartTimestamp = &start
	}
	if !c.stopTimestamp.IsZero() {
		stop := c.stopTimestamp
		snapshot.StopTimestamp = &stop
	}
	if c.chargingProfile != nil {
		snapshot.HasChargingProfile = true
		snapshot.ChargingProfileId = c.chargingProfile.ChargingProfileId
	}
	return snapshot
}

// ConnectorTable the fixed set of connectors of a node
type ConnectorTable struct {
	ids        []int
	connectors map[int]*Connector
}

func NewConnectorTable(connectors ...*Connector) *ConnectorTable {
	table := &ConnectorTable{connectors: make(map[int]*Connector)}
	for _, c := range connectors {
		table.connectors[c.id] = c
		table.ids = append(table.ids, c.id)
	}
	sort.Ints(table.ids)
	return table
}

func (t *ConnectorTable) Get(id int) (*Connector, bool) {
	c, ok := t.connectors[id]
	return c, ok
}

// Resolve finds the connector addressed by id; without an id the sole connector of a single outlet node
func (t *ConnectorTable) Resolve(id *int) (*Connector, bool) {
	if id == nil {
		if len(t.ids) == 1 {
			return t.connectors[t.ids[0]], true
		}
		return nil, false
	}
	return t.Get(*id)
}

func (t *ConnectorTable) All() []*Connector {
	all := make([]*Connector, 0, len(t.ids))
	for _, id := range t.ids {
		all = append(all, t.connectors[id])
	}
	return all
}

func (t *ConnectorTable) Len() int {
	return len(t.ids)
}

// FindByTransaction returns the connector charging under transactionId
func (t *ConnectorTable) FindByTransaction(transactionId int) (*Connector, bool) {
	for _, c := range t.All() {
		c.mutex.Lock()
		found := c.holdsTransaction(transactionId)
		c.mutex.Unlock()
		if found {
			return c, true
		}
	}
	return nil, false
}

// Broadcast locks every connector in id order and applies fn to each while all stay locked,
// so no concurrent single connector update can interleave with it
func (t *ConnectorTable) Broadcast(fn func(c *ConnectorState)) {
	all := t.All()
	for _, c := range all {
		c.mutex.Lock()
	}
	defer func() {
		for i := len(all) - 1; i >= 0; i-- {
			all[i].mutex.Unlock()
		}
	}()
	for _, c := range all {
		fn(&ConnectorState{c: c})
	}
}

func (t *ConnectorTable) Snapshot(chargePointId string) []models.Connector {
	var snapshot []models.Connector
	for _, c := range t.All() {
		snapshot = append(snapshot, c.Snapshot(chargePointId))
	}
	return snapshot
}

func (t *ConnectorTable) ChargingCount() int {
	count := 0
	for _, c := range t.All() {
		if c.IsCharging() {
			count++
		}
	}
	return count
}

// ConnectorState is handed to Broadcast callbacks, the connector is already locked
type ConnectorState struct {
	c *Connector
}

func (s *ConnectorState) Id() int {
	return s.c.id
}

func (s *ConnectorState) TransactionId() (int, bool) {
	return s.c.transactionId, s.c.hasTransaction
}

func (s *ConnectorState) SetChargingProfile(profile *types.ChargingProfile) {
	s.c.chargingProfile = profile
}

func (s *ConnectorState) SetAvailability(availability core.AvailabilityType) {
	s.c.availability = availability
}

func (s *ConnectorState) Status() core.ChargePointStatus {
	return s.c.status()
}
