package core

import "evcp/ocpp"

const UnlockConnectorFeatureName = "UnlockConnector"

type UnlockStatus string

const (
	UnlockStatusUnlocked     UnlockStatus = "Unlocked"
	UnlockStatusUnlockFailed UnlockStatus = "UnlockFailed"
	UnlockStatusNotSupported UnlockStatus = "NotSupported"
)

type UnlockConnectorRequest struct {
	ocpp.Signed
	ConnectorId int `json:"connectorId"`
}

type UnlockConnectorResponse struct {
	ocpp.Signed
	Status UnlockStatus `json:"status"`
}

func (r *UnlockConnectorRequest) GetFeatureName() string {
	return UnlockConnectorFeatureName
}

func (r *UnlockConnectorResponse) GetFeatureName() string {
	return UnlockConnectorFeatureName
}

func NewUnlockConnectorRequest(connectorId int) *UnlockConnectorRequest {
	return &UnlockConnectorRequest{ConnectorId: connectorId}
}

func NewUnlockConnectorResponse(status UnlockStatus) *UnlockConnectorResponse {
	return &UnlockConnectorResponse{Status: status}
}
