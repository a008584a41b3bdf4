package chargepoint

import (
	"context"
	"encoding/json"
	"evcp/internal"
	"evcp/metrics/counters"
	"evcp/ocpp"
	"evcp/ocpp/core"
	"evcp/types"
	"fmt"
	"strconv"
	"time"
)

func (cp *ChargePoint) SendBootNotification(ctx context.Context, opts ...CallOption) (*core.BootNotificationResponse, error) {
	request := core.NewBootNotificationRequest(cp.conf.ChargePoint.Vendor, cp.conf.ChargePoint.Model)
	request.ChargePointSerialNumber = cp.conf.ChargePoint.SerialNumber
	request.FirmwareVersion = cp.conf.ChargePoint.FirmwareVersion
	response, err := cp.sender.Call(ctx, request, opts...)
	if err != nil {
		return nil, err
	}
	boot := response.(*core.BootNotificationResponse)
	cp.registration.Apply(boot, time.Now())
	counters.ObserveHeartbeatInterval(cp.conf.ChargePoint.Location, cp.id, cp.registration.HeartbeatInterval())
	cp.logger.FeatureEvent(core.BootNotificationFeatureName, cp.id, fmt.Sprintf("registration %s; heartbeat interval %v", boot.Status, cp.registration.HeartbeatInterval()))

	event := cp.newEvent(internal.EventRegistration, 0)
	event.Status = string(boot.Status)
	event.Info = fmt.Sprintf("heartbeat interval %v", cp.registration.HeartbeatInterval())
	cp.notify(func(handler internal.EventHandler) { handler.OnRegistration(event) })
	return boot, nil
}

func (cp *ChargePoint) SendHeartbeat(ctx context.Context, opts ...CallOption) (*core.HeartbeatResponse, error) {
	response, err := cp.sender.Call(ctx, core.NewHeartbeatRequest(), opts...)
	if err != nil {
		return nil, err
	}
	heartbeat := response.(*core.HeartbeatResponse)
	if heartbeat.CurrentTime != nil {
		cp.registration.UpdateClock(heartbeat.CurrentTime.Time, time.Now())
	}
	return heartbeat, nil
}

func (cp *ChargePoint) SendStatusNotification(ctx context.Context, connectorId int, errorCode core.ChargePointErrorCode, status core.ChargePointStatus, opts ...CallOption) error {
	request := core.NewStatusNotificationRequest(connectorId, errorCode, status)
	request.Timestamp = types.NewDateTime(cp.Now())
	if _, err := cp.sender.Call(ctx, request, opts...); err != nil {
		return err
	}
	cp.statusEvent(connectorId, string(status))
	return nil
}

func (cp *ChargePoint) Authorize(ctx context.Context, idTag string, opts ...CallOption) (*types.IdTagInfo, error) {
	response, err := cp.sender.Call(ctx, core.NewAuthorizationRequest(idTag), opts...)
	if err != nil {
		return nil, err
	}
	return response.(*core.AuthorizeResponse).IdTagInfo, nil
}

// SendMeterValues reports the energy register of a connector, within its transaction if one is running
func (cp *ChargePoint) SendMeterValues(ctx context.Context, connectorId int, opts ...CallOption) error {
	connector, ok := cp.connectors.Get(connectorId)
	if !ok {
		return ErrUnknownConnector
	}
	request := core.NewMeterValuesRequest(connectorId, []types.MeterValue{{
		Timestamp: types.NewDateTime(cp.Now()),
		SampledValue: []types.SampledValue{{
			Value:     strconv.Itoa(connector.MeterValue()),
			Context:   types.ReadingContextSamplePeriodic,
			Measurand: types.MeasurandEnergyActiveImportRegister,
			Location:  types.LocationOutlet,
			Unit:      types.UnitOfMeasureWh,
		}},
	}})
	if transactionId, ok := connector.TransactionId(); ok {
		request.TransactionId = &transactionId
	}
	_, err := cp.sender.Call(ctx, request, opts...)
	return err
}

func (cp *ChargePoint) DataTransfer(ctx context.Context, vendorId, messageId string, data interface{}, opts ...CallOption) (*core.DataTransferResponse, error) {
	request := core.NewDataTransferRequest(vendorId)
	request.MessageId = messageId
	request.Data = data
	response, err := cp.sender.Call(ctx, request, opts...)
	if err != nil {
		return nil, err
	}
	return response.(*core.DataTransferResponse), nil
}

// StartLocalTransaction starts charging on an authorized local request, e.g. an RFID swipe
func (cp *ChargePoint) StartLocalTransaction(connectorId int, idTag string) error {
	connector, ok := cp.connectors.Get(connectorId)
	if !ok {
		return ErrUnknownConnector
	}
	session, ok := connector.BeginTransaction(idTag, cp.Now())
	if !ok {
		return ErrConnectorBusy
	}
	return cp.enqueueStart(session)
}

// StopLocalTransaction ends the running transaction of a connector
func (cp *ChargePoint) StopLocalTransaction(connectorId int, reason core.Reason) error {
	connector, ok := cp.connectors.Get(connectorId)
	if !ok {
		return ErrUnknownConnector
	}
	session, err := connector.EndTransaction(cp.Now())
	if err != nil {
		return err
	}
	return cp.enqueueStop(session, reason)
}

// AddEnergy advances the meter of a connector, as reported by the hardware
func (cp *ChargePoint) AddEnergy(connectorId int, wh int) (int, error) {
	connector, ok := cp.connectors.Get(connectorId)
	if !ok {
		return 0, ErrUnknownConnector
	}
	return connector.AddMeterValue(wh), nil
}

func (cp *ChargePoint) enqueueStart(session *Session) error {
	request := core.NewStartTransactionRequest(session.ConnectorId, session.IdTag, session.MeterStart, types.NewDateTime(session.StartTime))
	request.ReservationId = session.ReservationId
	if _, err := cp.queue.Enqueue(request, cp.startCompletion(request)); err != nil {
		return err
	}
	cp.enqueueStatus(session.ConnectorId, core.ChargePointStatusCharging)
	return nil
}

func (cp *ChargePoint) enqueueStop(session *Session, reason core.Reason) error {
	request := core.NewStopTransactionRequest(session.MeterStop, types.NewDateTime(session.StopTime), session.TransactionId)
	request.IdTag = session.IdTag
	request.Reason = reason
	if _, err := cp.queue.Enqueue(request, cp.stopCompletion(session.ConnectorId, request)); err != nil {
		return err
	}
	cp.enqueueStatus(session.ConnectorId, core.ChargePointStatusAvailable)
	return nil
}

func (cp *ChargePoint) enqueueStatus(connectorId int, status core.ChargePointStatus) {
	request := core.NewStatusNotificationRequest(connectorId, core.NoError, status)
	request.Timestamp = types.NewDateTime(cp.Now())
	if _, err := cp.queue.Enqueue(request, cp.statusCompletion(request)); err != nil {
		cp.logger.Error("queueing status notification", err)
	}
}

// completionFor rebuilds the completion of a restored queue entry from its payload
func (cp *ChargePoint) completionFor(command string, payload json.RawMessage) Completion {
	feature, ok := cp.registry.Feature(command)
	if !ok {
		return nil
	}
	request, err := ocpp.ParseRawJsonRequest(payload, feature.GetRequestType())
	if err != nil {
		cp.logger.Error(fmt.Sprintf("restoring queued %s", command), err)
		return nil
	}
	switch r := request.(type) {
	case *core.StartTransactionRequest:
		return cp.startCompletion(r)
	case *core.StopTransactionRequest:
		return cp.stopCompletion(0, r)
	case *core.StatusNotificationRequest:
		return cp.statusCompletion(r)
	default:
		return cp.decodeCompletion(command)
	}
}

func (cp *ChargePoint) decodeCompletion(feature string) Completion {
	return func(result *ocpp.CallResult) error {
		_, err := cp.sender.DecodeResponse(feature, result)
		return err
	}
}

// startCompletion stores the assigned transaction id on the connector
func (cp *ChargePoint) startCompletion(request *core.StartTransactionRequest) Completion {
	return func(result *ocpp.CallResult) error {
		response, err := cp.sender.DecodeResponse(core.StartTransactionFeatureName, result)
		if err != nil {
			return err
		}
		start := response.(*core.StartTransactionResponse)
		connector, ok := cp.connectors.Get(request.ConnectorId)
		if !ok {
			return nil
		}
		var startTime time.Time
		if request.Timestamp != nil {
			startTime = request.Timestamp.Time
		}
		if !connector.ConfirmTransaction(request.IdTag, startTime, start.TransactionId, start.IdTagInfo) {
			cp.logger.Warn(fmt.Sprintf("connector %d: transaction %d does not match the running session", request.ConnectorId, start.TransactionId))
			return nil
		}
		status := ""
		if start.IdTagInfo != nil {
			status = string(start.IdTagInfo.Status)
		}
		cp.logger.FeatureEvent(core.StartTransactionFeatureName, cp.id, fmt.Sprintf("connector %d: transaction %d started; auth %s", request.ConnectorId, start.TransactionId, status))
		counters.CountTransaction(cp.conf.ChargePoint.Location, cp.id)

		event := cp.newEvent(internal.EventTransactionStart, request.ConnectorId)
		event.IdTag = request.IdTag
		event.TransactionId = start.TransactionId
		event.Status = status
		cp.notify(func(handler internal.EventHandler) { handler.OnTransactionStart(event) })
		return nil
	}
}

func (cp *ChargePoint) stopCompletion(connectorId int, request *core.StopTransactionRequest) Completion {
	return func(result *ocpp.CallResult) error {
		if _, err := cp.sender.DecodeResponse(core.StopTransactionFeatureName, result); err != nil {
			return err
		}
		cp.logger.FeatureEvent(core.StopTransactionFeatureName, cp.id, fmt.Sprintf("transaction %d stopped; meter %d", request.TransactionId, request.MeterStop))

		event := cp.newEvent(internal.EventTransactionStop, connectorId)
		event.IdTag = request.IdTag
		event.TransactionId = request.TransactionId
		event.Info = string(request.Reason)
		cp.notify(func(handler internal.EventHandler) { handler.OnTransactionStop(event) })
		return nil
	}
}

func (cp *ChargePoint) statusCompletion(request *core.StatusNotificationRequest) Completion {
	return func(result *ocpp.CallResult) error {
		if _, err := cp.sender.DecodeResponse(core.StatusNotificationFeatureName, result); err != nil {
			return err
		}
		cp.statusEvent(request.ConnectorId, string(request.Status))
		return nil
	}
}

func (cp *ChargePoint) statusEvent(connectorId int, status string) {
	event := cp.newEvent(internal.EventStatusNotification, connectorId)
	event.Status = status
	cp.notify(func(handler internal.EventHandler) { handler.OnStatusNotification(event) })
}

// onQueueAbandon rolls back a session whose StartTransaction was given up
func (cp *ChargePoint) onQueueAbandon(entry *QueueEntry, reason string) {
	counters.CountAbandoned(cp.conf.ChargePoint.Location, cp.id, entry.Command)
	if entry.Command != core.StartTransactionFeatureName {
		return
	}
	var request core.StartTransactionRequest
	if err := json.Unmarshal(entry.Payload, &request); err != nil || request.Timestamp == nil {
		return
	}
	connector, ok := cp.connectors.Get(request.ConnectorId)
	if !ok {
		return
	}
	if connector.AbortTransaction(request.IdTag, request.Timestamp.Time) {
		cp.logger.Warn(fmt.Sprintf("connector %d: session of %s dropped, start not confirmed (%s)", request.ConnectorId, request.IdTag, reason))
		cp.enqueueStatus(request.ConnectorId, core.ChargePointStatusAvailable)
	}
}
