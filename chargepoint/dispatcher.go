package chargepoint

import (
	"context"
	"evcp/internal"
	"evcp/metrics/counters"
	"evcp/ocpp"
	"evcp/signature"
	"fmt"
	"sync"
)

// RequestContext describes the inbound call a handler is answering
type RequestContext struct {
	ChargePointId string
	RequestId     string
	Action        string
	SenderId      string
	NetworkPath   []string
	mutex         sync.Mutex
	after         []func()
}

// AfterResponse registers fn to run once the response has been handed to the transport
func (rc *RequestContext) AfterResponse(fn func()) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	rc.after = append(rc.after, fn)
}

func (rc *RequestContext) afterResponse() []func() {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	return rc.after
}

// HandlerFunc answers one inbound request; a nil response means the handler has no opinion
type HandlerFunc func(ctx context.Context, rc *RequestContext, request ocpp.Request) (ocpp.Response, error)

type RequestListener func(rc *RequestContext, request ocpp.Request)

type ResponseListener func(rc *RequestContext, response ocpp.Response)

// Dispatcher answers every inbound call: parse, verify, fan out to handlers, sign
type Dispatcher struct {
	chargePointId     string
	registry          *ocpp.Registry
	signatures        *signature.Set
	logger            internal.LogHandler
	mutex             sync.RWMutex
	handlers          map[string][]HandlerFunc
	requestListeners  []RequestListener
	responseListeners []ResponseListener
}

func NewDispatcher(chargePointId string, registry *ocpp.Registry, signatures *signature.Set, logger internal.LogHandler) *Dispatcher {
	return &Dispatcher{
		chargePointId: chargePointId,
		registry:      registry,
		signatures:    signatures,
		logger:        logger,
		handlers:      make(map[string][]HandlerFunc),
	}
}

// Subscribe attaches one more handler to feature; all handlers of a feature run concurrently
func (d *Dispatcher) Subscribe(feature string, handler HandlerFunc) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.handlers[feature] = append(d.handlers[feature], handler)
}

func (d *Dispatcher) OnRequest(listener RequestListener) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.requestListeners = append(d.requestListeners, listener)
}

func (d *Dispatcher) OnResponse(listener ResponseListener) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.responseListeners = append(d.responseListeners, listener)
}

func (d *Dispatcher) handlersOf(feature string) []HandlerFunc {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	handlers := make([]HandlerFunc, len(d.handlers[feature]))
	copy(handlers, d.handlers[feature])
	return handlers
}

// Dispatch never panics and always returns a CallResult or a CallError for call
func (d *Dispatcher) Dispatch(ctx context.Context, call *ocpp.Call, rc *RequestContext) (reply ocpp.Message) {
	if rc == nil {
		rc = &RequestContext{}
	}
	rc.ChargePointId = d.chargePointId
	rc.RequestId = call.UniqueId
	rc.Action = call.Action
	if call.Routing != nil {
		rc.NetworkPath = call.Routing.NetworkPath
	}
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(fmt.Sprintf("dispatching %s %s", call.Action, call.UniqueId), fmt.Errorf("panic: %v", r))
			reply = ocpp.CreateCallError(call.UniqueId, ocpp.FormationViolation, "unexpected failure while processing request", nil)
			outcome = "panic"
		}
		counters.ObserveDispatch(d.chargePointId, call.Action, outcome)
	}()

	feature, ok := d.registry.Feature(call.Action)
	if !ok {
		outcome = "not_implemented"
		return ocpp.CreateCallError(call.UniqueId, ocpp.NotImplemented, fmt.Sprintf("action %s is not supported", call.Action), nil)
	}
	request, err := d.registry.ParseRequest(call.Action, call.RawPayload)
	if err != nil {
		outcome = "parse_error"
		d.logger.FeatureEvent(call.Action, d.chargePointId, fmt.Sprintf("could not parse request %s: %s", call.UniqueId, err))
		return ocpp.CreateCallError(call.UniqueId, ocpp.FormationViolation, fmt.Sprintf("could not parse request: %s", err), nil)
	}
	d.notifyRequest(rc, request)

	if err = d.verifyRequest(call.Action, request); err != nil {
		outcome = "signature_error"
		d.logger.Error(fmt.Sprintf("request %s %s rejected", call.Action, call.UniqueId), err)
		return ocpp.CreateCallError(call.UniqueId, ocpp.SecurityError, err.Error(), nil)
	}

	response := d.invoke(ctx, rc, request)
	if response == nil {
		outcome = "failed"
		response = feature.FailedResponse()
		if response == nil {
			return ocpp.CreateCallError(call.UniqueId, ocpp.GenericError, fmt.Sprintf("no handler answered %s", call.Action), nil)
		}
	}
	if err = d.signResponse(call.Action, response); err != nil {
		outcome = "signature_error"
		d.logger.Error(fmt.Sprintf("signing %s response", call.Action), err)
		return ocpp.CreateCallError(call.UniqueId, ocpp.SecurityError, err.Error(), nil)
	}
	d.notifyResponse(rc, response)

	result := ocpp.CreateCallResult(response, call.UniqueId)
	if call.Routing != nil && len(call.Routing.NetworkPath) > 0 {
		result.Routing = &ocpp.Routing{Destination: call.Routing.NetworkPath[0], NetworkPath: []string{d.chargePointId}}
	}
	return result
}

// invoke runs all handlers concurrently and returns the first successful response by completion order
func (d *Dispatcher) invoke(ctx context.Context, rc *RequestContext, request ocpp.Request) ocpp.Response {
	handlers := d.handlersOf(rc.Action)
	if len(handlers) == 0 {
		return nil
	}
	results := make(chan ocpp.Response, len(handlers))
	var wg sync.WaitGroup
	for i, handler := range handlers {
		wg.Add(1)
		go func(i int, handler HandlerFunc) {
			defer wg.Done()
			results <- d.runHandler(ctx, i, handler, rc, request)
		}(i, handler)
	}
	wg.Wait()
	close(results)

	var response ocpp.Response
	for r := range results {
		if r != nil && response == nil {
			response = r
		}
	}
	return response
}

func (d *Dispatcher) runHandler(ctx context.Context, i int, handler HandlerFunc, rc *RequestContext, request ocpp.Request) (response ocpp.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(fmt.Sprintf("%s handler %d", rc.Action, i), fmt.Errorf("panic: %v", r))
			response = nil
		}
	}()
	response, err := handler(ctx, rc, request)
	if err != nil {
		d.logger.Error(fmt.Sprintf("%s handler %d", rc.Action, i), err)
		return nil
	}
	return response
}

func (d *Dispatcher) verifyRequest(feature string, request ocpp.Request) error {
	signable, ok := request.(ocpp.Signable)
	if !ok {
		return nil
	}
	canonical, err := ocpp.Canonical(request)
	if err != nil {
		return &SignatureError{Feature: feature, Op: "verify request", Err: err}
	}
	if err = d.signatures.Active().VerifyRequest(feature, canonical, signable.GetSignatures()); err != nil {
		return &SignatureError{Feature: feature, Op: "verify request", Err: err}
	}
	return nil
}

func (d *Dispatcher) signResponse(feature string, response ocpp.Response) error {
	signable, ok := response.(ocpp.Signable)
	if !ok {
		return nil
	}
	canonical, err := ocpp.Canonical(response)
	if err != nil {
		return &SignatureError{Feature: feature, Op: "sign response", Err: err}
	}
	signatures, err := d.signatures.Active().SignResponse(feature, canonical)
	if err != nil {
		return &SignatureError{Feature: feature, Op: "sign response", Err: err}
	}
	signable.SetSignatures(signatures)
	return nil
}

func (d *Dispatcher) notifyRequest(rc *RequestContext, request ocpp.Request) {
	d.mutex.RLock()
	listeners := d.requestListeners
	d.mutex.RUnlock()
	for _, listener := range listeners {
		guard(d.logger, rc.Action+" request listener", func() { listener(rc, request) })
	}
}

func (d *Dispatcher) notifyResponse(rc *RequestContext, response ocpp.Response) {
	d.mutex.RLock()
	listeners := d.responseListeners
	d.mutex.RUnlock()
	for _, listener := range listeners {
		guard(d.logger, rc.Action+" response listener", func() { listener(rc, response) })
	}
}

// guard runs fn and reports a panic to the logger instead of propagating it
func guard(logger internal.LogHandler, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(name, fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
}
