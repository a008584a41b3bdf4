package chargepoint

import (
	"context"
	"encoding/json"
	"errors"
	"evcp/internal"
	"evcp/metrics/counters"
	"evcp/ocpp"
	"evcp/signature"
	"evcp/utility"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultRequestTimeout = time.Minute

type callOptions struct {
	timeout         time.Duration
	destination     string
	eventTrackingId string
}

type CallOption func(o *callOptions)

// WithTimeout overrides the request timeout of a single call
func WithTimeout(timeout time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = timeout
	}
}

// WithDestination routes the call to another networking node instead of the central system
func WithDestination(destination string) CallOption {
	return func(o *callOptions) {
		o.destination = destination
	}
}

func WithEventTrackingId(id string) CallOption {
	return func(o *callOptions) {
		o.eventTrackingId = id
	}
}

type callOutcome struct {
	message ocpp.Message
	err     error
}

type pendingCall struct {
	feature         string
	eventTrackingId string
	sentAt          time.Time
	outcome         chan callOutcome
}

// Sender correlates outbound requests with their responses
type Sender struct {
	chargePointId      string
	defaultDestination string
	defaultTimeout     time.Duration
	transport          Transport
	registry           *ocpp.Registry
	signatures         *signature.Set
	logger             internal.LogHandler
	requestId          atomic.Uint64
	mutex              sync.Mutex
	pending            map[string]*pendingCall
}

func NewSender(chargePointId, defaultDestination string, transport Transport, registry *ocpp.Registry, signatures *signature.Set, logger internal.LogHandler) *Sender {
	return &Sender{
		chargePointId:      chargePointId,
		defaultDestination: defaultDestination,
		defaultTimeout:     DefaultRequestTimeout,
		transport:          transport,
		registry:           registry,
		signatures:         signatures,
		logger:             logger,
		pending:            make(map[string]*pendingCall),
	}
}

func (s *Sender) SetDefaultTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.defaultTimeout = timeout
	}
}

// NextRequestId returns the next value of the request counter as a decimal string
func (s *Sender) NextRequestId() string {
	return strconv.FormatUint(s.requestId.Add(1), 10)
}

func (s *Sender) PendingCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.pending)
}

// Call sends a request and waits for its decoded and verified response
func (s *Sender) Call(ctx context.Context, request ocpp.Request, opts ...CallOption) (ocpp.Response, error) {
	result, err := s.CallRaw(ctx, request, opts...)
	if err != nil {
		return nil, err
	}
	return s.DecodeResponse(request.GetFeatureName(), result)
}

// CallRaw sends a request and returns the matched CallResult envelope undecoded.
// A CallError answer is returned as error.
func (s *Sender) CallRaw(ctx context.Context, request ocpp.Request, opts ...CallOption) (result *ocpp.CallResult, err error) {
	feature := request.GetFeatureName()
	options := callOptions{timeout: s.defaultTimeout}
	for _, opt := range opts {
		opt(&options)
	}
	if options.eventTrackingId == "" {
		options.eventTrackingId = utility.NewUUID()
	}
	defer func() {
		counters.ObserveCall(s.chargePointId, feature, callResultLabel(err))
	}()

	if err = s.sign(feature, request); err != nil {
		return nil, err
	}
	id := s.NextRequestId()
	call := ocpp.CreateCall(id, request, s.routing(options.destination))
	data, err := json.Marshal(call)
	if err != nil {
		return nil, err
	}
	if !s.transport.IsConnected() {
		return nil, ErrNotConnected
	}

	pending := &pendingCall{
		feature:         feature,
		eventTrackingId: options.eventTrackingId,
		sentAt:          time.Now(),
		outcome:         make(chan callOutcome, 1),
	}
	s.mutex.Lock()
	s.pending[id] = pending
	s.mutex.Unlock()
	defer s.forget(id)

	if err = s.transport.Send(ctx, data); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return nil, err
		}
		return nil, &TransportError{Err: err}
	}
	s.logger.FeatureEvent(feature, s.chargePointId, fmt.Sprintf("request %s sent; tracking id %s", id, options.eventTrackingId))

	timer := time.NewTimer(options.timeout)
	defer timer.Stop()
	select {
	case outcome := <-pending.outcome:
		if outcome.err != nil {
			return nil, outcome.err
		}
		switch message := outcome.message.(type) {
		case *ocpp.CallResult:
			return message, nil
		case *ocpp.CallError:
			return nil, message
		default:
			return nil, utility.Errf("unexpected answer type %T", message)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", ErrCancelled, ctx.Err())
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// DecodeResponse parses a result payload into the response type of feature and verifies its signatures
func (s *Sender) DecodeResponse(feature string, result *ocpp.CallResult) (ocpp.Response, error) {
	response, err := s.registry.ParseResponse(feature, result.RawPayload)
	if err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", feature, err)
	}
	if err = s.verify(feature, response); err != nil {
		return nil, err
	}
	return response, nil
}

// HandleResponse delivers a CallResult or CallError to the waiting caller;
// false when no pending request carries its id
func (s *Sender) HandleResponse(message ocpp.Message) bool {
	s.mutex.Lock()
	pending, ok := s.pending[message.GetUniqueId()]
	s.mutex.Unlock()
	if !ok {
		s.logger.Warn(fmt.Sprintf("no pending request with id %s", message.GetUniqueId()))
		return false
	}
	select {
	case pending.outcome <- callOutcome{message: message}:
	default:
		s.logger.Warn(fmt.Sprintf("duplicate response for request %s ignored", message.GetUniqueId()))
	}
	return true
}

// FailPending resolves every waiting call with err
func (s *Sender) FailPending(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, pending := range s.pending {
		select {
		case pending.outcome <- callOutcome{err: err}:
		default:
		}
	}
}

func (s *Sender) forget(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.pending, id)
}

func (s *Sender) routing(destination string) *ocpp.Routing {
	if destination == "" || destination == s.defaultDestination {
		return nil
	}
	return &ocpp.Routing{Destination: destination, NetworkPath: []string{s.chargePointId}}
}

func (s *Sender) sign(feature string, request ocpp.Request) error {
	signable, ok := request.(ocpp.Signable)
	if !ok {
		return nil
	}
	canonical, err := ocpp.Canonical(request)
	if err != nil {
		return &SignatureError{Feature: feature, Op: "sign request", Err: err}
	}
	signatures, err := s.signatures.Active().SignRequest(feature, canonical)
	if err != nil {
		return &SignatureError{Feature: feature, Op: "sign request", Err: err}
	}
	signable.SetSignatures(signatures)
	return nil
}

func (s *Sender) verify(feature string, response ocpp.Response) error {
	signable, ok := response.(ocpp.Signable)
	if !ok {
		return nil
	}
	canonical, err := ocpp.Canonical(response)
	if err != nil {
		return &SignatureError{Feature: feature, Op: "verify response", Err: err}
	}
	if err = s.signatures.Active().VerifyResponse(feature, canonical, signable.GetSignatures()); err != nil {
		return &SignatureError{Feature: feature, Op: "verify response", Err: err}
	}
	return nil
}

func callResultLabel(err error) string {
	var callError *ocpp.CallError
	var signatureError *SignatureError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrDisconnected):
		return "offline"
	case errors.As(err, &callError):
		return "call_error"
	case errors.As(err, &signatureError):
		return "signature"
	default:
		return "error"
	}
}
