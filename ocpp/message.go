package ocpp

import (
	"encoding/json"
	"evcp/utility"
	"fmt"
)

type CallType int

const (
	CallTypeRequest CallType = 2
	CallTypeResult  CallType = 3
	CallTypeError   CallType = 4
)

type ErrorCode string

const (
	NotImplemented                ErrorCode = "NotImplemented"
	NotSupported                  ErrorCode = "NotSupported"
	InternalError                 ErrorCode = "InternalError"
	ProtocolError                 ErrorCode = "ProtocolError"
	SecurityError                 ErrorCode = "SecurityError"
	FormationViolation            ErrorCode = "FormationViolation"
	PropertyConstraintViolation   ErrorCode = "PropertyConstraintViolation"
	OccurrenceConstraintViolation ErrorCode = "OccurrenceConstraintViolation"
	TypeConstraintViolation       ErrorCode = "TypeConstraintViolation"
	GenericError                  ErrorCode = "GenericError"
)

// Routing is the optional trailing envelope element used in multi-hop topologies.
// It is written only when a message is not addressed to the adjacent central system.
type Routing struct {
	Destination string   `json:"destination,omitempty"`
	NetworkPath []string `json:"networkPath,omitempty"`
}

// Message is any OCPP-J envelope
type Message interface {
	GetMessageTypeId() CallType
	GetUniqueId() string
}

// Call An OCPP-J Call message, containing an OCPP Request.
// RawPayload is set on parsed inbound calls, Payload on outbound ones.
type Call struct {
	TypeId     CallType
	UniqueId   string
	Action     string
	Payload    Request
	RawPayload json.RawMessage
	Routing    *Routing
}

func (call *Call) GetMessageTypeId() CallType {
	return CallTypeRequest
}

func (call *Call) GetUniqueId() string {
	return call.UniqueId
}

func (call *Call) MarshalJSON() ([]byte, error) {
	fields := []interface{}{int(CallTypeRequest), call.UniqueId, call.Action}
	if call.Payload != nil {
		fields = append(fields, call.Payload)
	} else {
		fields = append(fields, emptyPayload(call.RawPayload))
	}
	if call.Routing != nil {
		fields = append(fields, call.Routing)
	}
	return json.Marshal(fields)
}

// CallResult An OCPP-J CallResult message, containing an OCPP Response.
type CallResult struct {
	TypeId     CallType
	UniqueId   string
	Payload    Response
	RawPayload json.RawMessage
	Routing    *Routing
}

func (callResult *CallResult) GetMessageTypeId() CallType {
	return CallTypeResult
}

func (callResult *CallResult) GetUniqueId() string {
	return callResult.UniqueId
}

func (callResult *CallResult) MarshalJSON() ([]byte, error) {
	fields := []interface{}{int(CallTypeResult), callResult.UniqueId}
	if callResult.Payload != nil {
		fields = append(fields, callResult.Payload)
	} else {
		fields = append(fields, emptyPayload(callResult.RawPayload))
	}
	if callResult.Routing != nil {
		fields = append(fields, callResult.Routing)
	}
	return json.Marshal(fields)
}

// CallError An OCPP-J CallError message, it is also a Go error
type CallError struct {
	TypeId           CallType
	UniqueId         string
	ErrorCode        ErrorCode
	ErrorDescription string
	ErrorDetails     interface{}
	Routing          *Routing
}

func (callError *CallError) GetMessageTypeId() CallType {
	return CallTypeError
}

func (callError *CallError) GetUniqueId() string {
	return callError.UniqueId
}

func (callError *CallError) Error() string {
	return fmt.Sprintf("ocpp error [%s] %s: %s", callError.UniqueId, callError.ErrorCode, callError.ErrorDescription)
}

func (callError *CallError) MarshalJSON() ([]byte, error) {
	details := callError.ErrorDetails
	if details == nil {
		details = struct{}{}
	}
	fields := []interface{}{int(CallTypeError), callError.UniqueId, callError.ErrorCode, callError.ErrorDescription, details}
	if callError.Routing != nil {
		fields = append(fields, callError.Routing)
	}
	return json.Marshal(fields)
}

func CreateCall(uniqueId string, request Request, routing *Routing) *Call {
	return &Call{
		TypeId:   CallTypeRequest,
		UniqueId: uniqueId,
		Action:   request.GetFeatureName(),
		Payload:  request,
		Routing:  routing,
	}
}

func CreateCallResult(confirmation Response, uniqueId string) *CallResult {
	return &CallResult{
		TypeId:   CallTypeResult,
		UniqueId: uniqueId,
		Payload:  confirmation,
	}
}

func CreateCallError(uniqueId string, code ErrorCode, description string, details interface{}) *CallError {
	return &CallError{
		TypeId:           CallTypeError,
		UniqueId:         uniqueId,
		ErrorCode:        code,
		ErrorDescription: description,
		ErrorDetails:     details,
	}
}

// ParseError is returned by ParseMessage; UniqueId and TypeId are set whenever the frame carried readable ones
type ParseError struct {
	TypeId   CallType
	UniqueId string
	Reason   string
}

func (e *ParseError) Error() string {
	return e.Reason
}

func ParseMessage(data []byte) (Message, error) {
	fields, err := utility.ParseJson(data)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid json frame: %s", err)}
	}
	if len(fields) < 3 {
		return nil, &ParseError{Reason: "unsupported message format; expected at least 3 elements"}
	}
	var rawTypeId int
	if err = json.Unmarshal(fields[0], &rawTypeId); err != nil {
		return nil, &ParseError{Reason: "invalid message type"}
	}
	var uniqueId string
	if err = json.Unmarshal(fields[1], &uniqueId); err != nil || uniqueId == "" {
		return nil, &ParseError{Reason: "invalid message unique id"}
	}
	typeId := CallType(rawTypeId)
	switch typeId {
	case CallTypeRequest:
		if len(fields) != 4 && len(fields) != 5 {
			return nil, &ParseError{TypeId: typeId, UniqueId: uniqueId, Reason: "unsupported request format; expected 4 elements"}
		}
		var action string
		if err = json.Unmarshal(fields[2], &action); err != nil || action == "" {
			return nil, &ParseError{TypeId: typeId, UniqueId: uniqueId, Reason: "invalid action in request"}
		}
		call := &Call{TypeId: typeId, UniqueId: uniqueId, Action: action, RawPayload: fields[3]}
		if len(fields) == 5 {
			if call.Routing, err = parseRouting(fields[4]); err != nil {
				return nil, &ParseError{TypeId: typeId, UniqueId: uniqueId, Reason: "invalid routing element"}
			}
		}
		return call, nil
	case CallTypeResult:
		if len(fields) != 3 && len(fields) != 4 {
			return nil, &ParseError{TypeId: typeId, UniqueId: uniqueId, Reason: "unsupported result format; expected 3 elements"}
		}
		result := &CallResult{TypeId: typeId, UniqueId: uniqueId, RawPayload: fields[2]}
		if len(fields) == 4 {
			if result.Routing, err = parseRouting(fields[3]); err != nil {
				return nil, &ParseError{TypeId: typeId, UniqueId: uniqueId, Reason: "invalid routing element"}
			}
		}
		return result, nil
	case CallTypeError:
		if len(fields) != 5 && len(fields) != 6 {
			return nil, &ParseError{TypeId: typeId, UniqueId: uniqueId, Reason: "unsupported error format; expected 5 elements"}
		}
		callError := &CallError{TypeId: typeId, UniqueId: uniqueId}
		var code string
		if err = json.Unmarshal(fields[2], &code); err != nil {
			return nil, &ParseError{TypeId: typeId, UniqueId: uniqueId, Reason: "invalid error code"}
		}
		callError.ErrorCode = ErrorCode(code)
		_ = json.Unmarshal(fields[3], &callError.ErrorDescription)
		var details interface{}
		if json.Unmarshal(fields[4], &details) == nil {
			callError.ErrorDetails = details
		}
		if len(fields) == 6 {
			callError.Routing, _ = parseRouting(fields[5])
		}
		return callError, nil
	default:
		return nil, &ParseError{TypeId: typeId, UniqueId: uniqueId, Reason: fmt.Sprintf("invalid message type id: %v", typeId)}
	}
}

func parseRouting(raw json.RawMessage) (*Routing, error) {
	routing := &Routing{}
	if err := json.Unmarshal(raw, routing); err != nil {
		return nil, err
	}
	return routing, nil
}

func emptyPayload(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return struct{}{}
	}
	return raw
}
