package reservation

import (
	"evcp/ocpp"
	"evcp/types"
	"evcp/utility"
)

const ReserveNowFeatureName = "ReserveNow"

type ReservationStatus string

const (
	ReservationStatusAccepted    ReservationStatus = "Accepted"
	ReservationStatusFaulted     ReservationStatus = "Faulted"
	ReservationStatusOccupied    ReservationStatus = "Occupied"
	ReservationStatusRejected    ReservationStatus = "Rejected"
	ReservationStatusUnavailable ReservationStatus = "Unavailable"
)

type ReserveNowRequest struct {
	ocpp.Signed
	ConnectorId   int             `json:"connectorId"`
	ExpiryDate    *types.DateTime `json:"expiryDate"`
	IdTag         string          `json:"idTag"`
	ParentIdTag   string          `json:"parentIdTag,omitempty"`
	ReservationId int             `json:"reservationId"`
}

type ReserveNowResponse struct {
	ocpp.Signed
	Status ReservationStatus `json:"status"`
}

func (r *ReserveNowRequest) GetFeatureName() string {
	return ReserveNowFeatureName
}

func (r *ReserveNowRequest) Validate() error {
	if r.IdTag == "" {
		return utility.Err("idTag is required")
	}
	if r.ExpiryDate == nil {
		return utility.Err("expiryDate is required")
	}
	return nil
}

func (r *ReserveNowResponse) GetFeatureName() string {
	return ReserveNowFeatureName
}

func NewReserveNowRequest(connectorId int, expiryDate *types.DateTime, idTag string, reservationId int) *ReserveNowRequest {
	return &ReserveNowRequest{ConnectorId: connectorId, ExpiryDate: expiryDate, IdTag: idTag, ReservationId: reservationId}
}

func NewReserveNowResponse(status ReservationStatus) *ReserveNowResponse {
	return &ReserveNowResponse{Status: status}
}
