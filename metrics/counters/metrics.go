package counters

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var callCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "calls_total",
	Help:      "Outbound requests by feature and result.",
}, []string{"charge_point_id", "feature", "result"})

var dispatchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "dispatch_total",
	Help:      "Inbound requests by feature and outcome.",
}, []string{"charge_point_id", "feature", "outcome"})

var queueGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "charge_point",
	Name:      "queue_length",
	Help:      "Number of queued outbound requests.",
}, []string{"location", "charge_point_id"})

var abandonedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "charge_point",
	Name:      "queue_abandoned_total",
	Help:      "Queued requests given up after failed attempts or expiry.",
}, []string{"location", "charge_point_id", "feature"})

var chargingGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "charge_point",
	Name:      "connectors_charging",
	Help:      "Number of connectors in a transaction.",
}, []string{"location", "charge_point_id"})

var heartbeatGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "charge_point",
	Name:      "heartbeat_interval_seconds",
	Help:      "Effective heartbeat interval.",
}, []string{"location", "charge_point_id"})

var transactionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "transaction_count",
	Help:      "Total number of transactions.",
}, []string{"location", "charge_point_id"})

func ObserveCall(chargePointId, feature, result string) {
	if len(chargePointId) == 0 || len(feature) == 0 {
		return
	}
	callCounter.With(prometheus.Labels{"charge_point_id": chargePointId, "feature": feature, "result": result}).Inc()
}

func ObserveDispatch(chargePointId, feature, outcome string) {
	if len(chargePointId) == 0 || len(feature) == 0 {
		return
	}
	dispatchCounter.With(prometheus.Labels{"charge_point_id": chargePointId, "feature": feature, "outcome": outcome}).Inc()
}

func ObserveQueueLength(location, chargePointId string, count int) {
	if len(location) == 0 || len(chargePointId) == 0 {
		return
	}
	queueGauge.With(prometheus.Labels{"location": location, "charge_point_id": chargePointId}).Set(float64(count))
}

func CountAbandoned(location, chargePointId, feature string) {
	if len(location) == 0 || len(chargePointId) == 0 {
		return
	}
	abandonedCounter.With(prometheus.Labels{"location": location, "charge_point_id": chargePointId, "feature": feature}).Inc()
}

func ObserveCharging(location, chargePointId string, count int) {
	if len(location) == 0 || len(chargePointId) == 0 {
		return
	}
	chargingGauge.With(prometheus.Labels{"location": location, "charge_point_id": chargePointId}).Set(float64(count))
}

func ObserveHeartbeatInterval(location, chargePointId string, interval time.Duration) {
	if len(location) == 0 || len(chargePointId) == 0 {
		return
	}
	heartbeatGauge.With(prometheus.Labels{"location": location, "charge_point_id": chargePointId}).Set(interval.Seconds())
}

func CountTransaction(location, chargePointId string) {
	if len(location) == 0 || len(chargePointId) == 0 {
		return
	}
	transactionCounter.With(
		prometheus.Labels{
			"location":        location,
			"charge_point_id": chargePointId,
		}).Inc()
}
