package chargepoint

import (
	"context"
	"encoding/json"
	"errors"
	"evcp/internal"
	"evcp/internal/config"
	"evcp/metrics/counters"
	"evcp/ocpp"
	"evcp/ocpp/core"
	"evcp/ocpp/remotetrigger"
	"evcp/ocpp/reservation"
	"evcp/ocpp/smartcharging"
	"evcp/signature"
	"evcp/utility"
	"fmt"
	"sync"
	"time"
)

const (
	featureNameMaintenance = "Maintenance"
	featureNameHeartbeat   = "HeartbeatTimer"
)

// ChargePoint the device side OCPP node
type ChargePoint struct {
	conf          *config.Config
	id            string
	logger        internal.LogHandler
	database      internal.Database
	transport     Transport
	registry      *ocpp.Registry
	signatures    *signature.Set
	sender        *Sender
	dispatcher    *Dispatcher
	connectors    *ConnectorTable
	configuration *ConfigurationStore
	queue         *Queue
	registration  *Registration
	heartbeat     *Scheduler
	maintenance   *Scheduler
	mutex         sync.RWMutex
	events        []internal.EventHandler
	resetHandlers []func(resetType core.ResetType)
	ctx           context.Context
	cancel        context.CancelFunc
}

// Profiles supported by every node
var Profiles = []*ocpp.Profile{core.Profile, smartcharging.Profile, reservation.Profile, remotetrigger.Profile}

func NewChargePoint(conf *config.Config, transport Transport, signatures *signature.Set, logger internal.LogHandler) (*ChargePoint, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	registry := ocpp.NewRegistry(Profiles...)
	cp := &ChargePoint{
		conf:       conf,
		id:         conf.ChargePoint.Id,
		logger:     logger,
		transport:  transport,
		registry:   registry,
		signatures: signatures,
	}
	var connectors []*Connector
	for _, c := range conf.Connectors {
		connectors = append(connectors, NewConnector(c.Id, c.MaxPower, c.MaxCapacity))
	}
	cp.connectors = NewConnectorTable(connectors...)

	var profileNames []string
	for _, p := range Profiles {
		profileNames = append(profileNames, p.Name)
	}
	cp.configuration = NewConfigurationStore(DefaultConfiguration(len(connectors), int(conf.Heartbeat.DefaultInterval/time.Second), profileNames), logger)
	cp.configuration.OnChange(cp.onConfigurationChange)

	cp.sender = NewSender(cp.id, conf.CentralSystem.Id, transport, registry, signatures, logger)
	cp.sender.SetDefaultTimeout(conf.CentralSystem.RequestTimeout)
	cp.dispatcher = NewDispatcher(cp.id, registry, signatures, logger)

	cp.queue = NewQueue(conf.Maintenance.MaxAttempts, conf.Maintenance.EntryTTL, logger)
	cp.queue.OnAbandon(cp.onQueueAbandon)

	cp.heartbeat = NewScheduler(featureNameHeartbeat, conf.Heartbeat.DefaultInterval, conf.Maintenance.LockTimeout, cp.heartbeatTick, logger)
	cp.maintenance = NewScheduler(featureNameMaintenance, conf.Maintenance.Interval, conf.Maintenance.LockTimeout, cp.maintenanceTick, logger)
	cp.registration = NewRegistration(cp.heartbeat, conf.Heartbeat.DefaultInterval)

	transport.SetMessageHandler(cp.handleIncomingMessage)
	transport.SetDisconnectHandler(cp.handleDisconnect)
	cp.registerSystemHandlers()
	return cp, nil
}

// SetDatabase attaches persistence and restores configuration and queue of a previous run
func (cp *ChargePoint) SetDatabase(database internal.Database) error {
	cp.database = database
	if err := cp.configuration.SetDatabase(database); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	stored, err := database.GetQueueEntries()
	if err != nil {
		return fmt.Errorf("loading queue: %w", err)
	}
	cp.queue.Restore(stored, cp.completionFor)
	cp.queue.SetDatabase(database)
	if len(stored) > 0 {
		cp.logger.FeatureEvent(featureNameMaintenance, cp.id, fmt.Sprintf("restored %d queued requests", cp.queue.Len()))
	}
	return nil
}

func (cp *ChargePoint) AddEventHandler(handler internal.EventHandler) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()
	cp.events = append(cp.events, handler)
}

// OnReset registers fn to be called after an accepted Reset was answered
func (cp *ChargePoint) OnReset(fn func(resetType core.ResetType)) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()
	cp.resetHandlers = append(cp.resetHandlers, fn)
}

// Subscribe attaches an additional handler for an inbound operation
func (cp *ChargePoint) Subscribe(feature string, handler HandlerFunc) {
	cp.dispatcher.Subscribe(feature, handler)
}

func (cp *ChargePoint) Id() string {
	return cp.id
}

func (cp *ChargePoint) Connectors() *ConnectorTable {
	return cp.connectors
}

func (cp *ChargePoint) Configuration() *ConfigurationStore {
	return cp.configuration
}

func (cp *ChargePoint) Queue() *Queue {
	return cp.queue
}

func (cp *ChargePoint) Registration() *Registration {
	return cp.registration
}

func (cp *ChargePoint) Sender() *Sender {
	return cp.sender
}

func (cp *ChargePoint) Dispatcher() *Dispatcher {
	return cp.dispatcher
}

// Now local time corrected to the central system clock
func (cp *ChargePoint) Now() time.Time {
	return cp.registration.Now()
}

// Start connects, registers and starts the heartbeat and maintenance timers.
// A failed connection is retried by the maintenance tick.
func (cp *ChargePoint) Start(ctx context.Context) {
	cp.ctx, cp.cancel = context.WithCancel(ctx)
	cp.heartbeat.Start(cp.ctx)
	cp.maintenance.Start(cp.ctx)
	if err := cp.connect(cp.ctx); err != nil {
		cp.logger.Error("connecting to central system", err)
	}
}

func (cp *ChargePoint) Stop() {
	if cp.cancel != nil {
		cp.cancel()
	}
	cp.heartbeat.Stop()
	cp.maintenance.Stop()
	if err := cp.transport.Close(); err != nil {
		cp.logger.Error("closing transport", err)
	}
	cp.sender.FailPending(ErrDisconnected)
}

// connect opens the transport and sends BootNotification
func (cp *ChargePoint) connect(ctx context.Context) error {
	if err := cp.transport.Connect(ctx); err != nil {
		return err
	}
	_, err := cp.SendBootNotification(ctx)
	return err
}

func (cp *ChargePoint) handleDisconnect(err error) {
	cp.logger.Warn(fmt.Sprintf("connection to central system lost: %v", err))
	cp.sender.FailPending(ErrDisconnected)
}

// handleIncomingMessage routes answers to the sender and calls to the dispatcher
func (cp *ChargePoint) handleIncomingMessage(data []byte) {
	message, err := ocpp.ParseMessage(data)
	if err != nil {
		var parseError *ocpp.ParseError
		if errors.As(err, &parseError) && parseError.TypeId == ocpp.CallTypeRequest && parseError.UniqueId != "" {
			cp.reply(ocpp.CreateCallError(parseError.UniqueId, ocpp.FormationViolation, parseError.Reason, nil))
		}
		cp.logger.Error("invalid frame from central system", err)
		return
	}
	switch m := message.(type) {
	case *ocpp.CallResult, *ocpp.CallError:
		cp.sender.HandleResponse(m)
	case *ocpp.Call:
		go cp.dispatch(m)
	}
}

func (cp *ChargePoint) dispatch(call *ocpp.Call) {
	ctx := cp.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	rc := &RequestContext{SenderId: cp.conf.CentralSystem.Id}
	if call.Routing != nil && len(call.Routing.NetworkPath) > 0 {
		rc.SenderId = call.Routing.NetworkPath[len(call.Routing.NetworkPath)-1]
	}
	reply := cp.dispatcher.Dispatch(ctx, call, rc)
	cp.reply(reply)
	for _, fn := range rc.afterResponse() {
		go guard(cp.logger, call.Action+" after response", fn)
	}
}

func (cp *ChargePoint) reply(message ocpp.Message) {
	data, err := json.Marshal(message)
	if err != nil {
		cp.logger.Error("encoding reply", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err = cp.transport.Send(ctx, data); err != nil {
		cp.logger.Error(fmt.Sprintf("sending reply %s", message.GetUniqueId()), err)
	}
}

func (cp *ChargePoint) heartbeatTick(ctx context.Context) {
	if !cp.registration.HeartbeatsEnabled() || !cp.transport.IsConnected() {
		return
	}
	if _, err := cp.SendHeartbeat(ctx); err != nil {
		cp.logger.FeatureEvent(core.HeartbeatFeatureName, cp.id, fmt.Sprintf("heartbeat failed: %s", err))
	}
}

// maintenanceTick reconnects, re-registers and drains the queue
func (cp *ChargePoint) maintenanceTick(ctx context.Context) {
	if !cp.transport.IsConnected() {
		if err := cp.connect(ctx); err != nil {
			cp.logger.FeatureEvent(featureNameMaintenance, cp.id, fmt.Sprintf("reconnect failed: %s", err))
			return
		}
	} else if !cp.registration.HeartbeatsEnabled() {
		if _, err := cp.SendBootNotification(ctx); err != nil {
			cp.logger.FeatureEvent(featureNameMaintenance, cp.id, fmt.Sprintf("registration failed: %s", err))
		}
	}
	if !cp.registration.HeartbeatsEnabled() {
		return
	}
	if cp.queue.Len() > 0 {
		delivered, failed := cp.queue.Drain(ctx, cp.deliver)
		if delivered > 0 || failed > 0 {
			cp.logger.FeatureEvent(featureNameMaintenance, cp.id, fmt.Sprintf("queue: %d delivered, %d failed, %d left", delivered, failed, cp.queue.Len()))
		}
	}
	counters.ObserveQueueLength(cp.conf.ChargePoint.Location, cp.id, cp.queue.Len())
	counters.ObserveCharging(cp.conf.ChargePoint.Location, cp.id, cp.connectors.ChargingCount())
}

// RunMaintenance runs one maintenance tick now; false when a tick was already running
func (cp *ChargePoint) RunMaintenance(ctx context.Context) bool {
	return cp.maintenance.Tick(ctx)
}

// deliver sends a queued entry and hands the answer to its completion
func (cp *ChargePoint) deliver(ctx context.Context, entry *QueueEntry) error {
	feature, ok := cp.registry.Feature(entry.Command)
	if !ok {
		return fmt.Errorf("unknown queued command %s", entry.Command)
	}
	request, err := ocpp.ParseRawJsonRequest(entry.Payload, feature.GetRequestType())
	if err != nil {
		return err
	}
	result, err := cp.sender.CallRaw(ctx, request)
	if err != nil {
		return err
	}
	return entry.complete(result)
}

func (cp *ChargePoint) onConfigurationChange(key, value string) {
	if key != KeyHeartbeatInterval {
		return
	}
	seconds := utility.ToInt(value)
	if seconds <= 0 {
		cp.logger.Warn(fmt.Sprintf("ignoring heartbeat interval %q", value))
		return
	}
	interval := cp.registration.SetInterval(time.Duration(seconds) * time.Second)
	counters.ObserveHeartbeatInterval(cp.conf.ChargePoint.Location, cp.id, interval)
}

func (cp *ChargePoint) notify(fn func(handler internal.EventHandler)) {
	cp.mutex.RLock()
	handlers := cp.events
	cp.mutex.RUnlock()
	for _, handler := range handlers {
		guard(cp.logger, "event handler", func() { fn(handler) })
	}
}

func (cp *ChargePoint) newEvent(eventType string, connectorId int) *internal.EventMessage {
	return &internal.EventMessage{
		Type:          eventType,
		ChargePointId: cp.id,
		ConnectorId:   connectorId,
		Time:          cp.Now(),
	}
}
