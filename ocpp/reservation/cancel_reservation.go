package reservation

import "evcp/ocpp"

const CancelReservationFeatureName = "CancelReservation"

type CancelReservationStatus string

const (
	CancelReservationStatusAccepted CancelReservationStatus = "Accepted"
	CancelReservationStatusRejected CancelReservationStatus = "Rejected"
)

type CancelReservationRequest struct {
	ocpp.Signed
	ReservationId int `json:"reservationId"`
}

type CancelReservationResponse struct {
	ocpp.Signed
	Status CancelReservationStatus `json:"status"`
}

func (r *CancelReservationRequest) GetFeatureName() string {
	return CancelReservationFeatureName
}

func (r *CancelReservationResponse) GetFeatureName() string {
	return CancelReservationFeatureName
}

func NewCancelReservationRequest(reservationId int) *CancelReservationRequest {
	return &CancelReservationRequest{ReservationId: reservationId}
}

func NewCancelReservationResponse(status CancelReservationStatus) *CancelReservationResponse {
	return &CancelReservationResponse{Status: status}
}

const ProfileName = "Reservation"

var Profile = ocpp.NewProfile(
	ProfileName,
	ocpp.NewFeature(ReserveNowFeatureName, &ReserveNowRequest{}, &ReserveNowResponse{}, func() ocpp.Response {
		return NewReserveNowResponse(ReservationStatusRejected)
	}),
	ocpp.NewFeature(CancelReservationFeatureName, &CancelReservationRequest{}, &CancelReservationResponse{}, func() ocpp.Response {
		return NewCancelReservationResponse(CancelReservationStatusRejected)
	}),
)
