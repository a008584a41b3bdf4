package smartcharging

import (
	"evcp/ocpp"
	"evcp/types"
)

const ClearChargingProfileFeatureName = "ClearChargingProfile"

type ClearChargingProfileStatus string

const (
	ClearChargingProfileStatusAccepted ClearChargingProfileStatus = "Accepted"
	ClearChargingProfileStatusUnknown  ClearChargingProfileStatus = "Unknown"
)

type ClearChargingProfileRequest struct {
	ocpp.Signed
	Id                     *int                             `json:"id,omitempty"`
	ConnectorId            *int                             `json:"connectorId,omitempty"`
	ChargingProfilePurpose types.ChargingProfilePurposeType `json:"chargingProfilePurpose,omitempty"`
	StackLevel             *int                             `json:"stackLevel,omitempty"`
}

type ClearChargingProfileResponse struct {
	ocpp.Signed
	Status ClearChargingProfileStatus `json:"status"`
}

func (r *ClearChargingProfileRequest) GetFeatureName() string {
	return ClearChargingProfileFeatureName
}

func (r *ClearChargingProfileResponse) GetFeatureName() string {
	return ClearChargingProfileFeatureName
}

// Matches reports whether a profile installed on connectorId is selected by the request criteria
func (r *ClearChargingProfileRequest) Matches(connectorId int, profile *types.ChargingProfile) bool {
	if profile == nil {
		return false
	}
	if r.Id != nil {
		return *r.Id == profile.ChargingProfileId
	}
	if r.ConnectorId != nil && *r.ConnectorId != 0 && *r.ConnectorId != connectorId {
		return false
	}
	if r.ChargingProfilePurpose != "" && r.ChargingProfilePurpose != profile.ChargingProfilePurpose {
		return false
	}
	if r.StackLevel != nil && *r.StackLevel != profile.StackLevel {
		return false
	}
	return true
}

func NewClearChargingProfileRequest() *ClearChargingProfileRequest {
	return &ClearChargingProfileRequest{}
}

func NewClearChargingProfileResponse(status ClearChargingProfileStatus) *ClearChargingProfileResponse {
	return &ClearChargingProfileResponse{Status: status}
}
