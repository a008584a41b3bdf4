package core

import (
	"evcp/ocpp"
	"evcp/types"
)

const ProfileName = "Core"

// Profile contains all features of the core profile. Features invoked by the central system
// carry the negative response that is sent when no local handler answers.
var Profile = ocpp.NewProfile(
	ProfileName,
	ocpp.NewFeature(AuthorizeFeatureName, &AuthorizeRequest{}, &AuthorizeResponse{}, nil),
	ocpp.NewFeature(BootNotificationFeatureName, &BootNotificationRequest{}, &BootNotificationResponse{}, nil),
	ocpp.NewFeature(HeartbeatFeatureName, &HeartbeatRequest{}, &HeartbeatResponse{}, nil),
	ocpp.NewFeature(MeterValuesFeatureName, &MeterValuesRequest{}, &MeterValuesResponse{}, nil),
	ocpp.NewFeature(StartTransactionFeatureName, &StartTransactionRequest{}, &StartTransactionResponse{}, nil),
	ocpp.NewFeature(StopTransactionFeatureName, &StopTransactionRequest{}, &StopTransactionResponse{}, nil),
	ocpp.NewFeature(StatusNotificationFeatureName, &StatusNotificationRequest{}, &StatusNotificationResponse{}, nil),
	ocpp.NewFeature(DataTransferFeatureName, &DataTransferRequest{}, &DataTransferResponse{}, func() ocpp.Response {
		return NewDataTransferResponse(DataTransferStatusUnknownVendorId)
	}),
	ocpp.NewFeature(RemoteStartTransactionFeatureName, &RemoteStartTransactionRequest{}, &RemoteStartTransactionResponse{}, func() ocpp.Response {
		return NewRemoteStartTransactionResponse(types.RemoteStartStopStatusRejected)
	}),
	ocpp.NewFeature(RemoteStopTransactionFeatureName, &RemoteStopTransactionRequest{}, &RemoteStopTransactionResponse{}, func() ocpp.Response {
		return NewRemoteStopTransactionResponse(types.RemoteStartStopStatusRejected)
	}),
	ocpp.NewFeature(ChangeAvailabilityFeatureName, &ChangeAvailabilityRequest{}, &ChangeAvailabilityResponse{}, func() ocpp.Response {
		return NewChangeAvailabilityResponse(AvailabilityStatusRejected)
	}),
	ocpp.NewFeature(ChangeConfigurationFeatureName, &ChangeConfigurationRequest{}, &ChangeConfigurationResponse{}, func() ocpp.Response {
		return NewChangeConfigurationResponse(ConfigurationStatusRejected)
	}),
	ocpp.NewFeature(GetConfigurationFeatureName, &GetConfigurationRequest{}, &GetConfigurationResponse{}, func() ocpp.Response {
		return NewGetConfigurationResponse(nil, nil)
	}),
	ocpp.NewFeature(ResetFeatureName, &ResetRequest{}, &ResetResponse{}, func() ocpp.Response {
		return NewResetResponse(ResetStatusRejected)
	}),
	ocpp.NewFeature(UnlockConnectorFeatureName, &UnlockConnectorRequest{}, &UnlockConnectorResponse{}, func() ocpp.Response {
		return NewUnlockConnectorResponse(UnlockStatusUnlockFailed)
	}),
	ocpp.NewFeature(ClearCacheFeatureName, &ClearCacheRequest{}, &ClearCacheResponse{}, func() ocpp.Response {
		return NewClearCacheResponse(ClearCacheStatusRejected)
	}),
)
