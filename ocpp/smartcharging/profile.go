package smartcharging

import "evcp/ocpp"

const ProfileName = "SmartCharging"

var Profile = ocpp.NewProfile(
	ProfileName,
	ocpp.NewFeature(SetChargingProfileFeatureName, &SetChargingProfileRequest{}, &SetChargingProfileResponse{}, func() ocpp.Response {
		return NewSetChargingProfileResponse(ChargingProfileStatusRejected)
	}),
	ocpp.NewFeature(ClearChargingProfileFeatureName, &ClearChargingProfileRequest{}, &ClearChargingProfileResponse{}, func() ocpp.Response {
		return NewClearChargingProfileResponse(ClearChargingProfileStatusUnknown)
	}),
)
