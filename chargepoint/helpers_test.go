package chargepoint

import (
	"context"
	"encoding/json"
	"evcp/internal/config"
	"evcp/ocpp"
	"evcp/ocpp/core"
	"evcp/signature"
	"evcp/types"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faker/faker/v4"
)

// testLogger collects errors so tests can assert on reported failures
type testLogger struct {
	mutex  sync.Mutex
	errors []string
	warns  []string
	events []string
}

func (l *testLogger) FeatureEvent(feature, _, text string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.events = append(l.events, feature+": "+text)
}

func (l *testLogger) Debug(_ string) {}

func (l *testLogger) Warn(text string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.warns = append(l.warns, text)
}

func (l *testLogger) Error(text string, err error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.errors = append(l.errors, text+": "+err.Error())
}

func (l *testLogger) RawDataEvent(_, _ string) {}

// hasEvent reports whether a feature event containing text was logged
func (l *testLogger) hasEvent(text string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	for _, event := range l.events {
		if strings.Contains(event, text) {
			return true
		}
	}
	return false
}

func (l *testLogger) errorCount() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.errors)
}

// fakeTransport plays the central system: frames sent by the node are recorded,
// calls are answered synchronously by respond when it returns a message
type fakeTransport struct {
	mutex        sync.Mutex
	connected    bool
	connectErr   error
	sendErr      error
	calls        []*ocpp.Call
	replies      chan ocpp.Message
	respond      func(call *ocpp.Call) ocpp.Message
	onMessage    func(data []byte)
	onDisconnect func(err error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connected: true, replies: make(chan ocpp.Message, 100), respond: csmsResponder(42)}
}

func (f *fakeTransport) Connect(_ context.Context) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Send(_ context.Context, data []byte) error {
	f.mutex.Lock()
	if f.sendErr != nil {
		f.mutex.Unlock()
		return f.sendErr
	}
	message, err := ocpp.ParseMessage(data)
	if err != nil {
		f.mutex.Unlock()
		return err
	}
	call, isCall := message.(*ocpp.Call)
	if !isCall {
		f.mutex.Unlock()
		f.replies <- message
		return nil
	}
	f.calls = append(f.calls, call)
	respond := f.respond
	handler := f.onMessage
	f.mutex.Unlock()

	if respond == nil || handler == nil {
		return nil
	}
	if answer := respond(call); answer != nil {
		frame, err := json.Marshal(answer)
		if err != nil {
			return err
		}
		handler(frame)
	}
	return nil
}

func (f *fakeTransport) SetMessageHandler(handler func(data []byte)) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.onMessage = handler
}

func (f *fakeTransport) SetDisconnectHandler(handler func(err error)) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.onDisconnect = handler
}

func (f *fakeTransport) IsConnected() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.connected
}

func (f *fakeTransport) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.connected = false
	return nil
}

func (f *fakeTransport) setConnected(connected bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.connected = connected
}

func (f *fakeTransport) setResponder(respond func(call *ocpp.Call) ocpp.Message) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.respond = respond
}

// sentActions the actions of all calls sent so far, in order
func (f *fakeTransport) sentActions() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	actions := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		actions = append(actions, call.Action)
	}
	return actions
}

// receive injects a frame as if it came from the central system
func (f *fakeTransport) receive(t *testing.T, message ocpp.Message) {
	t.Helper()
	data, err := json.Marshal(message)
	if err != nil {
		t.Fatal(err)
	}
	f.mutex.Lock()
	handler := f.onMessage
	f.mutex.Unlock()
	handler(data)
}

// awaitReply waits for the answer of the node to an injected call
func (f *fakeTransport) awaitReply(t *testing.T) ocpp.Message {
	t.Helper()
	select {
	case reply := <-f.replies:
		return reply
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from charge point")
		return nil
	}
}

// csmsResponder answers like a central system assigning transactionId to every started transaction
func csmsResponder(transactionId int) func(call *ocpp.Call) ocpp.Message {
	return func(call *ocpp.Call) ocpp.Message {
		now := types.NewDateTime(time.Now())
		accepted := types.NewIdTagInfo(types.AuthorizationStatusAccepted)
		var response ocpp.Response
		switch call.Action {
		case core.BootNotificationFeatureName:
			response = core.NewBootNotificationResponse(now, 30, core.RegistrationStatusAccepted)
		case core.HeartbeatFeatureName:
			response = core.NewHeartbeatResponse(now)
		case core.AuthorizeFeatureName:
			response = core.NewAuthorizationResponse(accepted)
		case core.StartTransactionFeatureName:
			response = core.NewStartTransactionResponse(accepted, transactionId)
		case core.StopTransactionFeatureName:
			response = core.NewStopTransactionResponse()
		case core.StatusNotificationFeatureName:
			response = core.NewStatusNotificationResponse()
		case core.MeterValuesFeatureName:
			response = core.NewMeterValuesResponse()
		case core.DataTransferFeatureName:
			response = core.NewDataTransferResponse(core.DataTransferStatusAccepted)
		default:
			return ocpp.CreateCallError(call.UniqueId, ocpp.NotImplemented, call.Action, nil)
		}
		return ocpp.CreateCallResult(response, call.UniqueId)
	}
}

func testConfig() *config.Config {
	conf := &config.Config{}
	conf.ChargePoint.Id = "cp-test"
	conf.ChargePoint.Vendor = "evcp"
	conf.ChargePoint.Model = "test"
	conf.ChargePoint.Location = "test"
	conf.CentralSystem.Url = "ws://127.0.0.1:9999/ws"
	conf.CentralSystem.Id = "csms"
	conf.CentralSystem.RequestTimeout = 2 * time.Second
	conf.Connectors = []config.Connector{{Id: 1, MaxPower: 22000, MaxCapacity: 32}, {Id: 2, MaxPower: 22000, MaxCapacity: 32}}
	conf.Heartbeat.DefaultInterval = time.Hour
	conf.Maintenance.Interval = time.Hour
	conf.Maintenance.LockTimeout = 100 * time.Millisecond
	conf.Maintenance.MaxAttempts = 3
	conf.Maintenance.EntryTTL = time.Hour
	conf.Signature.Policy = "none"
	conf.Store.Type = "memory"
	return conf
}

func newTestChargePoint(t *testing.T) (*ChargePoint, *fakeTransport, *testLogger) {
	t.Helper()
	transport := newFakeTransport()
	logger := &testLogger{}
	cp, err := NewChargePoint(testConfig(), transport, signature.NewSet(), logger)
	if err != nil {
		t.Fatal(err)
	}
	return cp, transport, logger
}

// newIdTag a random id tag within the 20 character protocol limit
func newIdTag() string {
	tag := strings.ToUpper(faker.Word() + faker.Word())
	if len(tag) > 20 {
		tag = tag[:20]
	}
	return tag
}

func intPtr(i int) *int {
	return &i
}

// callRemote injects a call and returns the decoded answer of the node
func callRemote(t *testing.T, cp *ChargePoint, transport *fakeTransport, request ocpp.Request) ocpp.Response {
	t.Helper()
	payload, err := json.Marshal(request)
	if err != nil {
		t.Fatal(err)
	}
	id := faker.UUIDDigit()
	transport.receive(t, &ocpp.Call{TypeId: ocpp.CallTypeRequest, UniqueId: id, Action: request.GetFeatureName(), RawPayload: payload})
	reply := transport.awaitReply(t)
	if reply.GetUniqueId() != id {
		t.Fatalf("reply id = %s, want %s", reply.GetUniqueId(), id)
	}
	result, ok := reply.(*ocpp.CallResult)
	if !ok {
		t.Fatalf("reply = %#v, want CallResult", reply)
	}
	response, err := cp.registry.ParseResponse(request.GetFeatureName(), result.RawPayload)
	if err != nil {
		t.Fatal(err)
	}
	return response
}
