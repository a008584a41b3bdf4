package core

import (
	"evcp/ocpp"
	"evcp/utility"
)

const ChangeAvailabilityFeatureName = "ChangeAvailability"

type AvailabilityType string

type AvailabilityStatus string

const (
	AvailabilityTypeOperative   AvailabilityType   = "Operative"
	AvailabilityTypeInoperative AvailabilityType   = "Inoperative"
	AvailabilityStatusAccepted  AvailabilityStatus = "Accepted"
	AvailabilityStatusRejected  AvailabilityStatus = "Rejected"
	AvailabilityStatusScheduled AvailabilityStatus = "Scheduled"
)

type ChangeAvailabilityRequest struct {
	ocpp.Signed
	ConnectorId int              `json:"connectorId"`
	Type        AvailabilityType `json:"type"`
}

type ChangeAvailabilityResponse struct {
	ocpp.Signed
	Status AvailabilityStatus `json:"status"`
}

func (r *ChangeAvailabilityRequest) GetFeatureName() string {
	return ChangeAvailabilityFeatureName
}

func (r *ChangeAvailabilityRequest) Validate() error {
	if r.Type != AvailabilityTypeOperative && r.Type != AvailabilityTypeInoperative {
		return utility.Errf("invalid availability type: %s", r.Type)
	}
	return nil
}

func (c *ChangeAvailabilityResponse) GetFeatureName() string {
	return ChangeAvailabilityFeatureName
}

func NewChangeAvailabilityRequest(connectorId int, availabilityType AvailabilityType) *ChangeAvailabilityRequest {
	return &ChangeAvailabilityRequest{ConnectorId: connectorId, Type: availabilityType}
}

func NewChangeAvailabilityResponse(status AvailabilityStatus) *ChangeAvailabilityResponse {
	return &ChangeAvailabilityResponse{Status: status}
}
