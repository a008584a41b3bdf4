package chargepoint

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteStatus renders registration, connectors and queue as text tables
func (cp *ChargePoint) WriteStatus(w io.Writer) {
	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.AppendHeader(table.Row{"Charge point", "Connected", "Registration", "Heartbeat", "Clock offset", "Queued"})
	summary.AppendRow(table.Row{
		cp.id,
		cp.transport.IsConnected(),
		cp.registration.Status(),
		cp.registration.HeartbeatInterval(),
		cp.registration.ClockOffset().Round(time.Millisecond),
		cp.queue.Len(),
	})
	summary.Render()

	connectors := table.NewWriter()
	connectors.SetOutputMirror(w)
	connectors.AppendHeader(table.Row{"#", "Status", "Availability", "Id tag", "Transaction", "Meter, Wh", "Reservation", "Profile"})
	for _, c := range cp.connectors.Snapshot(cp.id) {
		transaction := "-"
		if c.IsCharging {
			transaction = "pending"
			if c.HasTransaction {
				transaction = fmt.Sprint(c.TransactionId)
			}
		}
		reservation := "-"
		if c.IsReserved {
			reservation = fmt.Sprint(c.ReservationId)
		}
		profile := "-"
		if c.HasChargingProfile {
			profile = fmt.Sprint(c.ChargingProfileId)
		}
		connectors.AppendRow(table.Row{c.Id, c.Status, c.Availability, c.IdTag, transaction, c.MeterValue, reservation, profile})
	}
	connectors.Render()

	entries := cp.queue.Entries()
	if len(entries) == 0 {
		return
	}
	queue := table.NewWriter()
	queue.SetOutputMirror(w)
	queue.AppendHeader(table.Row{"Seq", "Command", "Status", "Attempts", "Enqueued", "Last error"})
	for _, e := range entries {
		queue.AppendRow(table.Row{e.Sequence, e.Command, e.Status, e.Attempts, e.EnqueuedAt.Format(time.RFC3339), e.LastError})
	}
	queue.Render()
}

// StatusSummary the status tables as one string
func (cp *ChargePoint) StatusSummary() string {
	var sb strings.Builder
	cp.WriteStatus(&sb)
	return sb.String()
}
