package chargepoint

import (
	"context"
	"errors"
	"evcp/internal"
	"evcp/ocpp"
	"evcp/ocpp/core"
	"evcp/ocpp/remotetrigger"
	"evcp/ocpp/reservation"
	"evcp/ocpp/smartcharging"
	"evcp/types"
	"strings"
	"sync"
	"testing"
	"time"
)

// eventRecorder keeps the types of all events raised by a charge point
type eventRecorder struct {
	mutex  sync.Mutex
	events []*internal.EventMessage
}

func (r *eventRecorder) record(event *internal.EventMessage) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) OnRegistration(event *internal.EventMessage)       { r.record(event) }
func (r *eventRecorder) OnStatusNotification(event *internal.EventMessage) { r.record(event) }
func (r *eventRecorder) OnTransactionStart(event *internal.EventMessage)   { r.record(event) }
func (r *eventRecorder) OnTransactionStop(event *internal.EventMessage)    { r.record(event) }

func (r *eventRecorder) ofType(eventType string) []*internal.EventMessage {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var found []*internal.EventMessage
	for _, event := range r.events {
		if event.Type == eventType {
			found = append(found, event)
		}
	}
	return found
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func queuedCommands(cp *ChargePoint) []string {
	var commands []string
	for _, entry := range cp.Queue().Entries() {
		commands = append(commands, entry.Command)
	}
	return commands
}

func startedChargePoint(t *testing.T) (*ChargePoint, *fakeTransport, *testLogger) {
	t.Helper()
	cp, transport, logger := newTestChargePoint(t)
	cp.Start(context.Background())
	t.Cleanup(cp.Stop)
	if !cp.Registration().HeartbeatsEnabled() {
		t.Fatal("charge point not registered after start")
	}
	return cp, transport, logger
}

func TestRemoteStartStopScenario(t *testing.T) {
	cp, transport, _ := newTestChargePoint(t)
	events := &eventRecorder{}
	cp.AddEventHandler(events)
	cp.Start(context.Background())
	defer cp.Stop()

	if cp.Registration().Status() != core.RegistrationStatusAccepted {
		t.Fatalf("registration = %s", cp.Registration().Status())
	}
	if interval := cp.Registration().HeartbeatInterval(); interval != 30*time.Second {
		t.Errorf("heartbeat interval = %v, want 30s", interval)
	}
	if len(events.ofType(internal.EventRegistration)) != 1 {
		t.Error("registration event missing")
	}

	idTag := newIdTag()
	start := core.NewRemoteStartTransactionRequest(idTag)
	start.ConnectorId = intPtr(1)
	response := callRemote(t, cp, transport, start).(*core.RemoteStartTransactionResponse)
	if response.Status != types.RemoteStartStopStatusAccepted {
		t.Fatalf("remote start = %s", response.Status)
	}
	connector, _ := cp.Connectors().Get(1)
	if !connector.IsCharging() {
		t.Fatal("connector 1 not charging after remote start")
	}
	if got := strings.Join(queuedCommands(cp), ","); got != "StartTransaction,StatusNotification" {
		t.Fatalf("queue = %s", got)
	}

	if !cp.RunMaintenance(context.Background()) {
		t.Fatal("maintenance tick did not run")
	}
	if cp.Queue().Len() != 0 {
		t.Errorf("%d entries left after drain", cp.Queue().Len())
	}
	if id, ok := connector.TransactionId(); !ok || id != 42 {
		t.Fatalf("transaction id = %d, %v", id, ok)
	}
	if started := events.ofType(internal.EventTransactionStart); len(started) != 1 || started[0].TransactionId != 42 {
		t.Errorf("transaction start events = %v", started)
	}

	stop := callRemote(t, cp, transport, core.NewRemoteStopTransactionRequest(42)).(*core.RemoteStopTransactionResponse)
	if stop.Status != types.RemoteStartStopStatusAccepted {
		t.Fatalf("remote stop = %s", stop.Status)
	}
	if connector.IsCharging() {
		t.Error("connector still charging after remote stop")
	}
	if got := strings.Join(queuedCommands(cp), ","); got != "StopTransaction,StatusNotification" {
		t.Fatalf("queue = %s", got)
	}
	cp.RunMaintenance(context.Background())
	stopped := events.ofType(internal.EventTransactionStop)
	if len(stopped) != 1 || stopped[0].Info != string(core.ReasonRemote) || stopped[0].ConnectorId != 1 {
		t.Errorf("transaction stop events = %v", stopped)
	}
}

func TestRemoteCommandsOnUnknownConnector(t *testing.T) {
	cp, transport, _ := startedChargePoint(t)

	start := core.NewRemoteStartTransactionRequest(newIdTag())
	start.ConnectorId = intPtr(9)
	if r := callRemote(t, cp, transport, start).(*core.RemoteStartTransactionResponse); r.Status != types.RemoteStartStopStatusRejected {
		t.Errorf("remote start = %s", r.Status)
	}
	// two connectors and no id
	if r := callRemote(t, cp, transport, core.NewRemoteStartTransactionRequest(newIdTag())).(*core.RemoteStartTransactionResponse); r.Status != types.RemoteStartStopStatusRejected {
		t.Errorf("remote start without connector = %s", r.Status)
	}
	if r := callRemote(t, cp, transport, core.NewRemoteStopTransactionRequest(5)).(*core.RemoteStopTransactionResponse); r.Status != types.RemoteStartStopStatusRejected {
		t.Errorf("remote stop = %s", r.Status)
	}
	if r := callRemote(t, cp, transport, core.NewChangeAvailabilityRequest(9, core.AvailabilityTypeInoperative)).(*core.ChangeAvailabilityResponse); r.Status != core.AvailabilityStatusRejected {
		t.Errorf("change availability = %s", r.Status)
	}
	if r := callRemote(t, cp, transport, remotetrigger.NewTriggerMessageRequest(remotetrigger.MessageTriggerStatusNotification, 9)).(*remotetrigger.TriggerMessageResponse); r.Status != remotetrigger.TriggerMessageStatusRejected {
		t.Errorf("trigger message = %s", r.Status)
	}
	profile := smartcharging.NewTransactionChargingProfile(0, 16)
	if r := callRemote(t, cp, transport, smartcharging.NewSetChargingProfileRequest(9, profile)).(*smartcharging.SetChargingProfileResponse); r.Status != smartcharging.ChargingProfileStatusRejected {
		t.Errorf("set charging profile = %s", r.Status)
	}
	if r := callRemote(t, cp, transport, core.NewUnlockConnectorRequest(9)).(*core.UnlockConnectorResponse); r.Status != core.UnlockStatusUnlockFailed {
		t.Errorf("unlock connector = %s", r.Status)
	}
	expiry := types.NewDateTime(time.Now().Add(time.Hour))
	if r := callRemote(t, cp, transport, reservation.NewReserveNowRequest(9, expiry, newIdTag(), 3)).(*reservation.ReserveNowResponse); r.Status != reservation.ReservationStatusRejected {
		t.Errorf("reserve now = %s", r.Status)
	}

	if cp.Queue().Len() != 0 || cp.Connectors().ChargingCount() != 0 {
		t.Error("rejected commands changed state")
	}
	for _, c := range cp.Connectors().All() {
		if c.Status() != core.ChargePointStatusAvailable {
			t.Errorf("connector %d is %s", c.Id(), c.Status())
		}
		if c.ChargingProfile() != nil {
			t.Errorf("connector %d got a profile", c.Id())
		}
	}
}

func TestSetChargingProfileOnAllConnectors(t *testing.T) {
	cp, transport, _ := startedChargePoint(t)
	if err := cp.StartLocalTransaction(1, newIdTag()); err != nil {
		t.Fatal(err)
	}
	cp.RunMaintenance(context.Background())
	first, _ := cp.Connectors().Get(1)
	second, _ := cp.Connectors().Get(2)
	if id, ok := first.TransactionId(); !ok || id != 42 {
		t.Fatalf("transaction id = %d, %v", id, ok)
	}

	txProfile := smartcharging.NewTransactionChargingProfile(42, 16)
	if r := callRemote(t, cp, transport, smartcharging.NewSetChargingProfileRequest(0, txProfile)).(*smartcharging.SetChargingProfileResponse); r.Status != smartcharging.ChargingProfileStatusAccepted {
		t.Fatalf("set transaction profile = %s", r.Status)
	}
	if first.ChargingProfile() == nil || first.ChargingProfile().TransactionId != 42 {
		t.Errorf("connector 1 profile = %v", first.ChargingProfile())
	}
	if second.ChargingProfile() != nil {
		t.Error("profile of transaction 42 applied to idle connector 2")
	}

	defaultProfile := smartcharging.NewTransactionChargingProfile(0, 10)
	defaultProfile.ChargingProfileId = 11
	if r := callRemote(t, cp, transport, smartcharging.NewSetChargingProfileRequest(0, defaultProfile)).(*smartcharging.SetChargingProfileResponse); r.Status != smartcharging.ChargingProfileStatusAccepted {
		t.Fatalf("set profile without transaction = %s", r.Status)
	}
	for _, c := range cp.Connectors().All() {
		if p := c.ChargingProfile(); p == nil || p.ChargingProfileId != 11 {
			t.Errorf("connector %d profile = %v", c.Id(), p)
		}
	}
}

func TestChangeAvailabilityAllConnectors(t *testing.T) {
	cp, transport, _ := startedChargePoint(t)
	r := callRemote(t, cp, transport, core.NewChangeAvailabilityRequest(0, core.AvailabilityTypeInoperative)).(*core.ChangeAvailabilityResponse)
	if r.Status != core.AvailabilityStatusAccepted {
		t.Fatalf("status = %s", r.Status)
	}
	for _, c := range cp.Connectors().All() {
		if c.Status() != core.ChargePointStatusUnavailable {
			t.Errorf("connector %d is %s", c.Id(), c.Status())
		}
	}
}

func TestRejectedRegistration(t *testing.T) {
	cp, transport, _ := newTestChargePoint(t)
	transport.setResponder(func(call *ocpp.Call) ocpp.Message {
		if call.Action == core.BootNotificationFeatureName {
			return ocpp.CreateCallResult(core.NewBootNotificationResponse(types.NewDateTime(time.Now()), 30, core.RegistrationStatusRejected), call.UniqueId)
		}
		return csmsResponder(42)(call)
	})
	cp.Start(context.Background())
	defer cp.Stop()

	if cp.Registration().HeartbeatsEnabled() {
		t.Fatal("rejected node sends heartbeats")
	}
	if err := cp.StartLocalTransaction(1, newIdTag()); err != nil {
		t.Fatal(err)
	}
	cp.RunMaintenance(context.Background())
	if cp.Queue().Len() != 2 {
		t.Errorf("queue drained while not registered: %d entries", cp.Queue().Len())
	}
	for _, action := range transport.sentActions() {
		if action == core.StartTransactionFeatureName || action == core.HeartbeatFeatureName {
			t.Errorf("%s sent while not registered", action)
		}
	}

	transport.setResponder(csmsResponder(7))
	cp.RunMaintenance(context.Background())
	if !cp.Registration().HeartbeatsEnabled() {
		t.Fatal("maintenance did not re-register")
	}
	if cp.Queue().Len() != 0 {
		t.Errorf("%d entries left after registration", cp.Queue().Len())
	}
}

func TestChangeHeartbeatInterval(t *testing.T) {
	cp, transport, _ := startedChargePoint(t)
	r := callRemote(t, cp, transport, core.NewChangeConfigurationRequest(KeyHeartbeatInterval, "120")).(*core.ChangeConfigurationResponse)
	if r.Status != core.ConfigurationStatusAccepted {
		t.Fatalf("status = %s", r.Status)
	}
	waitFor(t, "heartbeat interval of 120s", func() bool {
		return cp.Registration().HeartbeatInterval() == 120*time.Second
	})
	if value, _ := cp.Configuration().Value(KeyHeartbeatInterval); value != "120" {
		t.Errorf("stored value = %q", value)
	}
}

func TestAbandonedStartDropsSession(t *testing.T) {
	cp, transport, _ := startedChargePoint(t)
	transport.setResponder(func(call *ocpp.Call) ocpp.Message {
		if call.Action == core.StartTransactionFeatureName {
			return ocpp.CreateCallError(call.UniqueId, ocpp.InternalError, "database down", nil)
		}
		return csmsResponder(42)(call)
	})
	if err := cp.StartLocalTransaction(1, newIdTag()); err != nil {
		t.Fatal(err)
	}
	connector, _ := cp.Connectors().Get(1)
	for i := 0; i < 3; i++ {
		cp.RunMaintenance(context.Background())
	}
	if connector.IsCharging() {
		t.Error("session kept after its start was abandoned")
	}
	if got := strings.Join(queuedCommands(cp), ","); got != "StatusNotification" {
		t.Errorf("queue = %s, want the Available notification", got)
	}
}

func TestLocalTransactionErrors(t *testing.T) {
	cp, _, _ := startedChargePoint(t)
	if err := cp.StartLocalTransaction(9, newIdTag()); !errors.Is(err, ErrUnknownConnector) {
		t.Errorf("unknown connector: err = %v", err)
	}
	if err := cp.StartLocalTransaction(1, newIdTag()); err != nil {
		t.Fatal(err)
	}
	if err := cp.StartLocalTransaction(1, newIdTag()); !errors.Is(err, ErrConnectorBusy) {
		t.Errorf("busy connector: err = %v", err)
	}
	if err := cp.StopLocalTransaction(1, core.ReasonLocal); !errors.Is(err, ErrTransactionPending) {
		t.Errorf("stop before confirmation: err = %v", err)
	}
	cp.RunMaintenance(context.Background())
	if err := cp.StopLocalTransaction(1, core.ReasonLocal); err != nil {
		t.Errorf("stop after confirmation: err = %v", err)
	}
	if err := cp.StopLocalTransaction(2, core.ReasonLocal); !errors.Is(err, ErrNotCharging) {
		t.Errorf("stop on idle connector: err = %v", err)
	}
}

func TestTriggerMessageSendsAfterReply(t *testing.T) {
	cp, transport, _ := startedChargePoint(t)
	before := len(transport.sentActions())
	r := callRemote(t, cp, transport, remotetrigger.NewTriggerMessageRequest(remotetrigger.MessageTriggerHeartbeat, -1)).(*remotetrigger.TriggerMessageResponse)
	if r.Status != remotetrigger.TriggerMessageStatusAccepted {
		t.Fatalf("status = %s", r.Status)
	}
	waitFor(t, "triggered heartbeat", func() bool {
		actions := transport.sentActions()
		return len(actions) > before && actions[len(actions)-1] == core.HeartbeatFeatureName
	})

	r = callRemote(t, cp, transport, remotetrigger.NewTriggerMessageRequest(remotetrigger.MessageTriggerFirmwareStatusNotification, -1)).(*remotetrigger.TriggerMessageResponse)
	if r.Status != remotetrigger.TriggerMessageStatusNotImplemented {
		t.Errorf("firmware status trigger = %s", r.Status)
	}
}

func TestResetStopsTransactions(t *testing.T) {
	cp, transport, _ := startedChargePoint(t)
	resets := make(chan core.ResetType, 1)
	cp.OnReset(func(resetType core.ResetType) { resets <- resetType })
	if err := cp.StartLocalTransaction(1, newIdTag()); err != nil {
		t.Fatal(err)
	}
	cp.RunMaintenance(context.Background())

	r := callRemote(t, cp, transport, core.NewResetRequest(core.ResetTypeSoft)).(*core.ResetResponse)
	if r.Status != core.ResetStatusAccepted {
		t.Fatalf("status = %s", r.Status)
	}
	select {
	case resetType := <-resets:
		if resetType != core.ResetTypeSoft {
			t.Errorf("reset type = %s", resetType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reset handler not called")
	}
	if cp.Connectors().ChargingCount() != 0 {
		t.Error("transaction survived reset")
	}
	if got := strings.Join(queuedCommands(cp), ","); got != "StopTransaction,StatusNotification" {
		t.Errorf("queue = %s", got)
	}
}

func TestMalformedCallAnswered(t *testing.T) {
	_, transport, logger := startedChargePoint(t)
	transport.mutex.Lock()
	handler := transport.onMessage
	transport.mutex.Unlock()
	handler([]byte(`[2,"abc","Reset"]`))
	reply, ok := transport.awaitReply(t).(*ocpp.CallError)
	if !ok || reply.UniqueId != "abc" || reply.ErrorCode != ocpp.FormationViolation {
		t.Errorf("reply = %#v", reply)
	}
	if logger.errorCount() == 0 {
		t.Error("malformed frame not logged")
	}
}

func TestDisconnectFailsPendingCalls(t *testing.T) {
	cp, transport, _ := startedChargePoint(t)
	transport.setResponder(nil)
	result := make(chan error, 1)
	go func() {
		_, err := cp.SendHeartbeat(context.Background())
		result <- err
	}()
	waitFor(t, "pending heartbeat", func() bool { return cp.Sender().PendingCount() == 1 })
	transport.mutex.Lock()
	onDisconnect := transport.onDisconnect
	transport.mutex.Unlock()
	onDisconnect(errors.New("connection reset"))
	select {
	case err := <-result:
		if !errors.Is(err, ErrDisconnected) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call not failed on disconnect")
	}
}

func TestWriteStatus(t *testing.T) {
	cp, _, _ := startedChargePoint(t)
	if err := cp.StartLocalTransaction(2, newIdTag()); err != nil {
		t.Fatal(err)
	}
	var out strings.Builder
	cp.WriteStatus(&out)
	text := out.String()
	for _, want := range []string{"cp-test", "Charging", "Available", "pending", "StartTransaction"} {
		if !strings.Contains(text, want) {
			t.Errorf("status output misses %q:\n%s", want, text)
		}
	}
	if !strings.Contains(cp.StatusSummary(), "cp-test") {
		t.Errorf("summary = %q", cp.StatusSummary())
	}
}
