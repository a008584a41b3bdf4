package chargepoint

import (
	"context"
	"encoding/json"
	"errors"
	"evcp/ocpp"
	"evcp/ocpp/core"
	"evcp/signature"
	"sync/atomic"
	"testing"
	"time"
)

func newTestDispatcher(policies ...signature.Policy) (*Dispatcher, *testLogger) {
	logger := &testLogger{}
	return NewDispatcher("cp-test", ocpp.NewRegistry(Profiles...), signature.NewSet(policies...), logger), logger
}

func inboundCall(action, payload string) *ocpp.Call {
	return &ocpp.Call{TypeId: ocpp.CallTypeRequest, UniqueId: "77", Action: action, RawPayload: json.RawMessage(payload)}
}

func expectCallError(t *testing.T, reply ocpp.Message, code ocpp.ErrorCode) {
	t.Helper()
	callError, ok := reply.(*ocpp.CallError)
	if !ok {
		t.Fatalf("reply = %#v, want CallError", reply)
	}
	if callError.ErrorCode != code {
		t.Errorf("error code = %s, want %s", callError.ErrorCode, code)
	}
	if callError.UniqueId != "77" {
		t.Errorf("error id = %s", callError.UniqueId)
	}
}

func expectResult(t *testing.T, reply ocpp.Message) ocpp.Response {
	t.Helper()
	result, ok := reply.(*ocpp.CallResult)
	if !ok {
		t.Fatalf("reply = %#v, want CallResult", reply)
	}
	if result.UniqueId != "77" {
		t.Errorf("result id = %s", result.UniqueId)
	}
	return result.Payload
}

func TestDispatchFirstResponseWins(t *testing.T) {
	d, logger := newTestDispatcher()
	d.Subscribe(core.ClearCacheFeatureName, func(context.Context, *RequestContext, ocpp.Request) (ocpp.Response, error) {
		return nil, errors.New("cache locked")
	})
	d.Subscribe(core.ClearCacheFeatureName, func(context.Context, *RequestContext, ocpp.Request) (ocpp.Response, error) {
		time.Sleep(10 * time.Millisecond)
		return core.NewClearCacheResponse(core.ClearCacheStatusAccepted), nil
	})
	d.Subscribe(core.ClearCacheFeatureName, func(context.Context, *RequestContext, ocpp.Request) (ocpp.Response, error) {
		return nil, nil
	})

	response := expectResult(t, d.Dispatch(context.Background(), inboundCall(core.ClearCacheFeatureName, `{}`), nil))
	if status := response.(*core.ClearCacheResponse).Status; status != core.ClearCacheStatusAccepted {
		t.Errorf("status = %s", status)
	}
	if logger.errorCount() != 1 {
		t.Errorf("%d errors logged, want the failing handler only", logger.errorCount())
	}
}

func TestDispatchWaitsForAllHandlers(t *testing.T) {
	d, _ := newTestDispatcher()
	var finished atomic.Int32
	for i := 0; i < 3; i++ {
		delay := time.Duration(i*10) * time.Millisecond
		d.Subscribe(core.ClearCacheFeatureName, func(context.Context, *RequestContext, ocpp.Request) (ocpp.Response, error) {
			time.Sleep(delay)
			finished.Add(1)
			return core.NewClearCacheResponse(core.ClearCacheStatusAccepted), nil
		})
	}
	d.Dispatch(context.Background(), inboundCall(core.ClearCacheFeatureName, `{}`), nil)
	if finished.Load() != 3 {
		t.Errorf("dispatch returned after %d of 3 handlers", finished.Load())
	}
}

func TestDispatchFailures(t *testing.T) {
	tests := []struct {
		name   string
		call   *ocpp.Call
		policy signature.Policy
		code   ocpp.ErrorCode
	}{
		{"unknown action", inboundCall("FirmwareUpdate", `{}`), nil, ocpp.NotImplemented},
		{"malformed payload", inboundCall(core.ChangeAvailabilityFeatureName, `{"connectorId":"one","type":"Operative"}`), nil, ocpp.FormationViolation},
		{"no failed response", inboundCall(core.HeartbeatFeatureName, `{}`), nil, ocpp.GenericError},
		{"request signature", inboundCall(core.ClearCacheFeatureName, `{}`), failingPolicy{failVerify: true}, ocpp.SecurityError},
		{"response signature", inboundCall(core.ClearCacheFeatureName, `{}`), failingPolicy{failSign: true}, ocpp.SecurityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var policies []signature.Policy
			if tt.policy != nil {
				policies = append(policies, tt.policy)
			}
			d, _ := newTestDispatcher(policies...)
			expectCallError(t, d.Dispatch(context.Background(), tt.call, nil), tt.code)
		})
	}
}

func TestDispatchFailedResponse(t *testing.T) {
	d, _ := newTestDispatcher()
	response := expectResult(t, d.Dispatch(context.Background(), inboundCall(core.ClearCacheFeatureName, `{}`), nil))
	if status := response.(*core.ClearCacheResponse).Status; status != core.ClearCacheStatusRejected {
		t.Errorf("status without handlers = %s, want Rejected", status)
	}
}

func TestDispatchHandlerPanic(t *testing.T) {
	d, logger := newTestDispatcher()
	d.Subscribe(core.ClearCacheFeatureName, func(context.Context, *RequestContext, ocpp.Request) (ocpp.Response, error) {
		panic("boom")
	})
	response := expectResult(t, d.Dispatch(context.Background(), inboundCall(core.ClearCacheFeatureName, `{}`), nil))
	if status := response.(*core.ClearCacheResponse).Status; status != core.ClearCacheStatusRejected {
		t.Errorf("status = %s", status)
	}
	if logger.errorCount() != 1 {
		t.Error("handler panic not reported")
	}
}

func TestDispatchListeners(t *testing.T) {
	d, logger := newTestDispatcher()
	d.Subscribe(core.ClearCacheFeatureName, func(context.Context, *RequestContext, ocpp.Request) (ocpp.Response, error) {
		return core.NewClearCacheResponse(core.ClearCacheStatusAccepted), nil
	})
	var requests, responses atomic.Int32
	d.OnRequest(func(*RequestContext, ocpp.Request) { panic("listener") })
	d.OnRequest(func(*RequestContext, ocpp.Request) { requests.Add(1) })
	d.OnResponse(func(rc *RequestContext, response ocpp.Response) {
		if rc.RequestId == "77" && response.GetFeatureName() == core.ClearCacheFeatureName {
			responses.Add(1)
		}
	})
	expectResult(t, d.Dispatch(context.Background(), inboundCall(core.ClearCacheFeatureName, `{}`), nil))
	if requests.Load() != 1 || responses.Load() != 1 {
		t.Errorf("listeners called %d/%d times", requests.Load(), responses.Load())
	}
	if logger.errorCount() != 1 {
		t.Error("listener panic not reported")
	}
}

func TestDispatchRepliesAlongNetworkPath(t *testing.T) {
	d, _ := newTestDispatcher()
	call := inboundCall(core.ClearCacheFeatureName, `{}`)
	call.Routing = &ocpp.Routing{Destination: "cp-test", NetworkPath: []string{"local-controller", "csms"}}
	var path []string
	d.Subscribe(core.ClearCacheFeatureName, func(_ context.Context, rc *RequestContext, _ ocpp.Request) (ocpp.Response, error) {
		path = rc.NetworkPath
		return core.NewClearCacheResponse(core.ClearCacheStatusAccepted), nil
	})
	result, ok := d.Dispatch(context.Background(), call, nil).(*ocpp.CallResult)
	if !ok {
		t.Fatal("no CallResult")
	}
	if len(path) != 2 {
		t.Errorf("handler saw network path %v", path)
	}
	if result.Routing == nil || result.Routing.Destination != "local-controller" {
		t.Errorf("reply routing = %+v", result.Routing)
	}

	plain, _ := d.Dispatch(context.Background(), inboundCall(core.ClearCacheFeatureName, `{}`), nil).(*ocpp.CallResult)
	if plain == nil || plain.Routing != nil {
		t.Error("reply to a direct call must not carry routing")
	}
}
