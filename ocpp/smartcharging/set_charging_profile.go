package smartcharging

import (
	"evcp/ocpp"
	"evcp/types"
	"evcp/utility"
)

const SetChargingProfileFeatureName = "SetChargingProfile"

type ChargingProfileStatus string

const (
	ChargingProfileStatusAccepted     ChargingProfileStatus = "Accepted"
	ChargingProfileStatusRejected     ChargingProfileStatus = "Rejected"
	ChargingProfileStatusNotSupported ChargingProfileStatus = "NotSupported"
)

// SetChargingProfileRequest ConnectorId 0 addresses the whole charge point
type SetChargingProfileRequest struct {
	ocpp.Signed
	ConnectorId     int                    `json:"connectorId"`
	ChargingProfile *types.ChargingProfile `json:"csChargingProfiles"`
}

type SetChargingProfileResponse struct {
	ocpp.Signed
	Status ChargingProfileStatus `json:"status"`
}

func NewSetChargingProfileRequest(connectorId int, chargingProfile *types.ChargingProfile) *SetChargingProfileRequest {
	return &SetChargingProfileRequest{ConnectorId: connectorId, ChargingProfile: chargingProfile}
}

func NewSetChargingProfileResponse(status ChargingProfileStatus) *SetChargingProfileResponse {
	return &SetChargingProfileResponse{Status: status}
}

func (r *SetChargingProfileRequest) GetFeatureName() string {
	return SetChargingProfileFeatureName
}

func (r *SetChargingProfileRequest) Validate() error {
	if r.ChargingProfile == nil {
		return utility.Err("csChargingProfiles is required")
	}
	if r.ConnectorId < 0 {
		return utility.Err("connectorId must not be negative")
	}
	return nil
}

func (r *SetChargingProfileResponse) GetFeatureName() string {
	return SetChargingProfileFeatureName
}

// NewTransactionChargingProfile a single period TxProfile capping the transaction at limit amperes,
// transactionId 0 leaves the profile unbound
func NewTransactionChargingProfile(transactionId, limit int) *types.ChargingProfile {
	period := types.ChargingSchedulePeriod{
		StartPeriod: 0,
		Limit:       float64(limit),
	}
	return &types.ChargingProfile{
		ChargingProfileId:      10,
		StackLevel:             10,
		TransactionId:          transactionId,
		ChargingProfilePurpose: types.ChargingProfilePurposeTxProfile,
		ChargingProfileKind:    types.ChargingProfileKindRelative,
		ChargingSchedule: &types.ChargingSchedule{
			ChargingRateUnit: types.ChargingRateUnitAmperes,
			ChargingSchedulePeriod: []types.ChargingSchedulePeriod{
				period,
			},
		},
	}
}
