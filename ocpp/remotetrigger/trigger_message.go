package remotetrigger

import (
	"evcp/ocpp"
	"evcp/utility"
)

const TriggerMessageFeatureName = "TriggerMessage"

type MessageTrigger string

type TriggerMessageStatus string

const (
	MessageTriggerBootNotification              MessageTrigger       = "BootNotification"
	MessageTriggerDiagnosticsStatusNotification MessageTrigger       = "DiagnosticsStatusNotification"
	MessageTriggerFirmwareStatusNotification    MessageTrigger       = "FirmwareStatusNotification"
	MessageTriggerHeartbeat                     MessageTrigger       = "Heartbeat"
	MessageTriggerMeterValues                   MessageTrigger       = "MeterValues"
	MessageTriggerStatusNotification            MessageTrigger       = "StatusNotification"
	TriggerMessageStatusAccepted                TriggerMessageStatus = "Accepted"
	TriggerMessageStatusRejected                TriggerMessageStatus = "Rejected"
	TriggerMessageStatusNotImplemented          TriggerMessageStatus = "NotImplemented"
)

type TriggerMessageRequest struct {
	ocpp.Signed
	RequestedMessage MessageTrigger `json:"requestedMessage"`
	ConnectorId      *int           `json:"connectorId,omitempty"`
}

func (f *TriggerMessageRequest) GetFeatureName() string {
	return TriggerMessageFeatureName
}

func (f *TriggerMessageRequest) Validate() error {
	if f.RequestedMessage == "" {
		return utility.Err("requestedMessage is required")
	}
	return nil
}

func NewTriggerMessageRequest(requestedMessage MessageTrigger, connectorId int) *TriggerMessageRequest {
	request := &TriggerMessageRequest{RequestedMessage: requestedMessage}
	if connectorId >= 0 {
		request.ConnectorId = &connectorId
	}
	return request
}

type TriggerMessageResponse struct {
	ocpp.Signed
	Status TriggerMessageStatus `json:"status"`
}

func (f *TriggerMessageResponse) GetFeatureName() string {
	return TriggerMessageFeatureName
}

func NewTriggerMessageResponse(status TriggerMessageStatus) *TriggerMessageResponse {
	return &TriggerMessageResponse{Status: status}
}

const ProfileName = "RemoteTrigger"

var Profile = ocpp.NewProfile(
	ProfileName,
	ocpp.NewFeature(TriggerMessageFeatureName, &TriggerMessageRequest{}, &TriggerMessageResponse{}, func() ocpp.Response {
		return NewTriggerMessageResponse(TriggerMessageStatusRejected)
	}),
)
