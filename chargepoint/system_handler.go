package chargepoint

import (
	"context"
	"evcp/ocpp"
	"evcp/ocpp/core"
	"evcp/ocpp/remotetrigger"
	"evcp/ocpp/reservation"
	"evcp/ocpp/smartcharging"
	"evcp/types"
	"fmt"
)

// registerSystemHandlers attaches the built-in answer of every remote command
func (cp *ChargePoint) registerSystemHandlers() {
	handlers := map[string]HandlerFunc{
		core.RemoteStartTransactionFeatureName:        cp.onRemoteStartTransaction,
		core.RemoteStopTransactionFeatureName:         cp.onRemoteStopTransaction,
		core.ChangeAvailabilityFeatureName:            cp.onChangeAvailability,
		core.ChangeConfigurationFeatureName:           cp.onChangeConfiguration,
		core.GetConfigurationFeatureName:              cp.onGetConfiguration,
		core.ResetFeatureName:                         cp.onReset,
		core.UnlockConnectorFeatureName:               cp.onUnlockConnector,
		core.ClearCacheFeatureName:                    cp.onClearCache,
		smartcharging.SetChargingProfileFeatureName:   cp.onSetChargingProfile,
		smartcharging.ClearChargingProfileFeatureName: cp.onClearChargingProfile,
		reservation.ReserveNowFeatureName:             cp.onReserveNow,
		reservation.CancelReservationFeatureName:      cp.onCancelReservation,
		remotetrigger.TriggerMessageFeatureName:       cp.onTriggerMessage,
	}
	for feature, handler := range handlers {
		cp.dispatcher.Subscribe(feature, handler)
	}
}

func (cp *ChargePoint) onRemoteStartTransaction(_ context.Context, _ *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*core.RemoteStartTransactionRequest)
	rejected := core.NewRemoteStartTransactionResponse(types.RemoteStartStopStatusRejected)

	connector, ok := cp.connectors.Resolve(req.ConnectorId)
	if !ok {
		cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, "no connector resolved")
		return rejected, nil
	}
	session, ok := connector.BeginTransaction(req.IdTag, cp.Now())
	if !ok {
		cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("connector %d is %s", connector.Id(), connector.Status()))
		return rejected, nil
	}
	if req.ChargingProfile != nil {
		connector.SetChargingProfile(req.ChargingProfile)
	}
	if err := cp.enqueueStart(session); err != nil {
		return nil, err
	}
	cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("connector %d: charging started for %s", connector.Id(), req.IdTag))
	return core.NewRemoteStartTransactionResponse(types.RemoteStartStopStatusAccepted), nil
}

func (cp *ChargePoint) onRemoteStopTransaction(_ context.Context, _ *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*core.RemoteStopTransactionRequest)
	rejected := core.NewRemoteStopTransactionResponse(types.RemoteStartStopStatusRejected)

	connector, ok := cp.connectors.FindByTransaction(req.TransactionId)
	if !ok {
		cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("transaction %d not found", req.TransactionId))
		return rejected, nil
	}
	// the transaction may have ended between lookup and stop
	session, ok := connector.EndTransactionIf(req.TransactionId, cp.Now())
	if !ok {
		return rejected, nil
	}
	if err := cp.enqueueStop(session, core.ReasonRemote); err != nil {
		return nil, err
	}
	cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("connector %d: transaction %d stopped", connector.Id(), req.TransactionId))
	return core.NewRemoteStopTransactionResponse(types.RemoteStartStopStatusAccepted), nil
}

func (cp *ChargePoint) onChangeAvailability(_ context.Context, _ *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*core.ChangeAvailabilityRequest)
	if req.ConnectorId == 0 {
		cp.connectors.Broadcast(func(c *ConnectorState) {
			c.SetAvailability(req.Type)
		})
		return core.NewChangeAvailabilityResponse(core.AvailabilityStatusAccepted), nil
	}
	connector, ok := cp.connectors.Get(req.ConnectorId)
	if !ok {
		return core.NewChangeAvailabilityResponse(core.AvailabilityStatusRejected), nil
	}
	connector.SetAvailability(req.Type)
	cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("connector %d: %s", req.ConnectorId, req.Type))
	return core.NewChangeAvailabilityResponse(core.AvailabilityStatusAccepted), nil
}

func (cp *ChargePoint) onChangeConfiguration(_ context.Context, _ *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*core.ChangeConfigurationRequest)
	status := cp.configuration.Change(req.Key, req.Value)
	cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("%s: %s", req.Key, status))
	return core.NewChangeConfigurationResponse(status), nil
}

func (cp *ChargePoint) onGetConfiguration(_ context.Context, _ *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*core.GetConfigurationRequest)
	keys, unknown := cp.configuration.Get(req.Key)
	return core.NewGetConfigurationResponse(keys, unknown), nil
}

// onReset stops running transactions after the answer went out, then hands over to reset listeners
func (cp *ChargePoint) onReset(_ context.Context, rc *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*core.ResetRequest)
	reason := core.ReasonSoftReset
	if req.Type == core.ResetTypeHard {
		reason = core.ReasonHardReset
	}
	rc.AfterResponse(func() {
		for _, connector := range cp.connectors.All() {
			session, err := connector.EndTransaction(cp.Now())
			if err != nil {
				continue
			}
			if err = cp.enqueueStop(session, reason); err != nil {
				cp.logger.Error(fmt.Sprintf("connector %d: stopping on reset", connector.Id()), err)
			}
		}
		cp.mutex.RLock()
		handlers := cp.resetHandlers
		cp.mutex.RUnlock()
		for _, handler := range handlers {
			guard(cp.logger, "reset handler", func() { handler(req.Type) })
		}
	})
	cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("%s reset accepted", req.Type))
	return core.NewResetResponse(core.ResetStatusAccepted), nil
}

func (cp *ChargePoint) onUnlockConnector(_ context.Context, _ *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*core.UnlockConnectorRequest)
	if _, ok := cp.connectors.Get(req.ConnectorId); !ok {
		return core.NewUnlockConnectorResponse(core.UnlockStatusUnlockFailed), nil
	}
	return core.NewUnlockConnectorResponse(core.UnlockStatusUnlocked), nil
}

func (cp *ChargePoint) onClearCache(_ context.Context, _ *RequestContext, _ ocpp.Request) (ocpp.Response, error) {
	return core.NewClearCacheResponse(core.ClearCacheStatusAccepted), nil
}

// onSetChargingProfile connector 0 installs the profile on every connector
// running its transaction, or on all connectors for a profile without one
func (cp *ChargePoint) onSetChargingProfile(_ context.Context, _ *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*smartcharging.SetChargingProfileRequest)
	profile := req.ChargingProfile
	if req.ConnectorId == 0 {
		applied := 0
		cp.connectors.Broadcast(func(c *ConnectorState) {
			if profile.TransactionId != 0 {
				if transactionId, ok := c.TransactionId(); !ok || transactionId != profile.TransactionId {
					return
				}
			}
			c.SetChargingProfile(profile)
			applied++
		})
		cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("profile %d applied to %d connectors", profile.ChargingProfileId, applied))
		return smartcharging.NewSetChargingProfileResponse(smartcharging.ChargingProfileStatusAccepted), nil
	}
	connector, ok := cp.connectors.Get(req.ConnectorId)
	if !ok {
		return smartcharging.NewSetChargingProfileResponse(smartcharging.ChargingProfileStatusRejected), nil
	}
	connector.SetChargingProfile(profile)
	cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("connector %d: profile %d applied", req.ConnectorId, profile.ChargingProfileId))
	return smartcharging.NewSetChargingProfileResponse(smartcharging.ChargingProfileStatusAccepted), nil
}

func (cp *ChargePoint) onClearChargingProfile(_ context.Context, _ *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*smartcharging.ClearChargingProfileRequest)
	connectors := cp.connectors.All()
	if req.ConnectorId != nil && *req.ConnectorId != 0 {
		connector, ok := cp.connectors.Get(*req.ConnectorId)
		if !ok {
			return smartcharging.NewClearChargingProfileResponse(smartcharging.ClearChargingProfileStatusUnknown), nil
		}
		connectors = []*Connector{connector}
	}
	cleared := 0
	for _, connector := range connectors {
		if connector.ClearChargingProfile(req.Matches) {
			cleared++
		}
	}
	if cleared == 0 {
		return smartcharging.NewClearChargingProfileResponse(smartcharging.ClearChargingProfileStatusUnknown), nil
	}
	return smartcharging.NewClearChargingProfileResponse(smartcharging.ClearChargingProfileStatusAccepted), nil
}

func (cp *ChargePoint) onReserveNow(_ context.Context, _ *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*reservation.ReserveNowRequest)
	connector, ok := cp.connectors.Get(req.ConnectorId)
	if !ok {
		return reservation.NewReserveNowResponse(reservation.ReservationStatusRejected), nil
	}
	status := connector.Reserve(req.ReservationId, req.IdTag, req.ExpiryDate.Time, cp.Now())
	cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("connector %d: reservation %d %s", req.ConnectorId, req.ReservationId, status))
	return reservation.NewReserveNowResponse(status), nil
}

func (cp *ChargePoint) onCancelReservation(_ context.Context, _ *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*reservation.CancelReservationRequest)
	for _, connector := range cp.connectors.All() {
		if connector.CancelReservation(req.ReservationId) {
			return reservation.NewCancelReservationResponse(reservation.CancelReservationStatusAccepted), nil
		}
	}
	return reservation.NewCancelReservationResponse(reservation.CancelReservationStatusRejected), nil
}

// onTriggerMessage sends the requested message once the answer went out
func (cp *ChargePoint) onTriggerMessage(ctx context.Context, rc *RequestContext, request ocpp.Request) (ocpp.Response, error) {
	req := request.(*remotetrigger.TriggerMessageRequest)
	var connectors []*Connector
	if req.ConnectorId != nil && *req.ConnectorId != 0 {
		connector, ok := cp.connectors.Get(*req.ConnectorId)
		if !ok {
			return remotetrigger.NewTriggerMessageResponse(remotetrigger.TriggerMessageStatusRejected), nil
		}
		connectors = []*Connector{connector}
	} else {
		connectors = cp.connectors.All()
	}

	var send func(ctx context.Context) error
	switch req.RequestedMessage {
	case remotetrigger.MessageTriggerBootNotification:
		send = func(ctx context.Context) error {
			_, err := cp.SendBootNotification(ctx)
			return err
		}
	case remotetrigger.MessageTriggerHeartbeat:
		send = func(ctx context.Context) error {
			_, err := cp.SendHeartbeat(ctx)
			return err
		}
	case remotetrigger.MessageTriggerStatusNotification:
		send = func(ctx context.Context) error {
			for _, connector := range connectors {
				if err := cp.SendStatusNotification(ctx, connector.Id(), core.NoError, connector.Status()); err != nil {
					return err
				}
			}
			return nil
		}
	case remotetrigger.MessageTriggerMeterValues:
		send = func(ctx context.Context) error {
			for _, connector := range connectors {
				if err := cp.SendMeterValues(ctx, connector.Id()); err != nil {
					return err
				}
			}
			return nil
		}
	default:
		return remotetrigger.NewTriggerMessageResponse(remotetrigger.TriggerMessageStatusNotImplemented), nil
	}

	rc.AfterResponse(func() {
		if err := send(ctx); err != nil {
			cp.logger.FeatureEvent(req.GetFeatureName(), cp.id, fmt.Sprintf("triggered %s failed: %s", req.RequestedMessage, err))
		}
	})
	return remotetrigger.NewTriggerMessageResponse(remotetrigger.TriggerMessageStatusAccepted), nil
}
