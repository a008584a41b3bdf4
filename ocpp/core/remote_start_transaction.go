package core

import (
	"evcp/ocpp"
	"evcp/types"
	"evcp/utility"
)

const RemoteStartTransactionFeatureName = "RemoteStartTransaction"

type RemoteStartTransactionRequest struct {
	ocpp.Signed
	ConnectorId     *int                   `json:"connectorId,omitempty"`
	IdTag           string                 `json:"idTag"`
	ChargingProfile *types.ChargingProfile `json:"chargingProfile,omitempty"`
}

type RemoteStartTransactionResponse struct {
	ocpp.Signed
	Status types.RemoteStartStopStatus `json:"status"`
}

func (r *RemoteStartTransactionRequest) GetFeatureName() string {
	return RemoteStartTransactionFeatureName
}

func (r *RemoteStartTransactionRequest) Validate() error {
	if r.IdTag == "" {
		return utility.Err("idTag is required")
	}
	if len(r.IdTag) > 20 {
		return utility.Err("idTag exceeds 20 characters")
	}
	return nil
}

func (c *RemoteStartTransactionResponse) GetFeatureName() string {
	return RemoteStartTransactionFeatureName
}

func NewRemoteStartTransactionRequest(idTag string) *RemoteStartTransactionRequest {
	return &RemoteStartTransactionRequest{IdTag: idTag}
}

func NewRemoteStartTransactionResponse(status types.RemoteStartStopStatus) *RemoteStartTransactionResponse {
	return &RemoteStartTransactionResponse{Status: status}
}
