package core

import (
	"evcp/ocpp"
	"evcp/types"
)

const MeterValuesFeatureName = "MeterValues"

type MeterValuesRequest struct {
	ocpp.Signed
	ConnectorId   int                `json:"connectorId"`
	TransactionId *int               `json:"transactionId,omitempty"`
	MeterValue    []types.MeterValue `json:"meterValue"`
}

type MeterValuesResponse struct {
	ocpp.Signed
}

func (r *MeterValuesRequest) GetFeatureName() string {
	return MeterValuesFeatureName
}

func (c *MeterValuesResponse) GetFeatureName() string {
	return MeterValuesFeatureName
}

func NewMeterValuesRequest(connectorId int, meterValues []types.MeterValue) *MeterValuesRequest {
	return &MeterValuesRequest{ConnectorId: connectorId, MeterValue: meterValues}
}

func NewMeterValuesResponse() *MeterValuesResponse {
	return &MeterValuesResponse{}
}
