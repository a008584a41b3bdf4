package models

import "time"

// Connector is a point in time copy of one connector's state
type Connector struct {
	Id                 int        `json:"connector_id" bson:"connector_id"`
	ChargePointId      string     `json:"charge_point_id" bson:"charge_point_id"`
	Availability       string     `json:"availability" bson:"availability"`
	Status             string     `json:"status" bson:"status"`
	MaxPower           int        `json:"max_power" bson:"max_power"`
	MaxCapacity        int        `json:"max_capacity" bson:"max_capacity"`
	IsReserved         bool       `json:"is_reserved" bson:"is_reserved"`
	ReservationId      int        `json:"reservation_id" bson:"reservation_id"`
	IsCharging         bool       `json:"is_charging" bson:"is_charging"`
	IdTag              string     `json:"id_tag" bson:"id_tag"`
	AuthStatus         string     `json:"auth_status" bson:"auth_status"`
	TransactionId      int        `json:"transaction_id" bson:"transaction_id"`
	HasTransaction     bool       `json:"has_transaction" bson:"has_transaction"`
	MeterValue         int        `json:"meter_value" bson:"meter_value"`
	MeterStart         int        `json:"meter_start" bson:"meter_start"`
	MeterStop          int        `json:"meter_stop" bson:"meter_stop"`
	StartTimestamp     *time.Time `json:"start_timestamp,omitempty" bson:"start_timestamp,omitempty"`
	StopTimestamp      *time.Time `json:"stop_timestamp,omitempty" bson:"stop_timestamp,omitempty"`
	ChargingProfileId  int        `json:"charging_profile_id" bson:"charging_profile_id"`
	HasChargingProfile bool       `json:"has_charging_profile" bson:"has_charging_profile"`
}
