package chargepoint

import (
	"errors"
	"evcp/ocpp/core"
	"evcp/ocpp/reservation"
	"evcp/types"
	"sync"
	"testing"
	"time"
)

func TestConnectorTransactionLifecycle(t *testing.T) {
	c := NewConnector(1, 22000, 32)
	idTag := newIdTag()
	start := time.Now()
	c.AddMeterValue(1000)

	session, ok := c.BeginTransaction(idTag, start)
	if !ok {
		t.Fatal("BeginTransaction on an available connector failed")
	}
	if session.MeterStart != 1000 || session.IdTag != idTag {
		t.Errorf("session = %+v", session)
	}
	if c.Status() != core.ChargePointStatusCharging {
		t.Errorf("status = %s, want Charging", c.Status())
	}
	if _, ok = c.BeginTransaction(newIdTag(), start); ok {
		t.Error("second transaction on a charging connector must be refused")
	}
	if _, err := c.EndTransaction(start); !errors.Is(err, ErrTransactionPending) {
		t.Errorf("EndTransaction before confirmation: err = %v, want ErrTransactionPending", err)
	}

	// timestamps come back from the wire truncated to seconds
	if !c.ConfirmTransaction(idTag, start.Truncate(time.Second), 77, types.NewIdTagInfo(types.AuthorizationStatusAccepted)) {
		t.Fatal("ConfirmTransaction of the running session failed")
	}
	if id, ok := c.TransactionId(); !ok || id != 77 {
		t.Errorf("TransactionId = %d, %v", id, ok)
	}

	c.AddMeterValue(500)
	if _, ok = c.EndTransactionIf(78, time.Now()); ok {
		t.Error("EndTransactionIf with another transaction id must not stop")
	}
	stopped, ok := c.EndTransactionIf(77, time.Now())
	if !ok {
		t.Fatal("EndTransactionIf failed")
	}
	if stopped.MeterStart != 1000 || stopped.MeterStop != 1500 || stopped.TransactionId != 77 {
		t.Errorf("stopped session = %+v", stopped)
	}
	if c.IsCharging() || c.Status() != core.ChargePointStatusAvailable {
		t.Errorf("connector still charging after stop, status %s", c.Status())
	}
	if _, err := c.EndTransaction(time.Now()); !errors.Is(err, ErrNotCharging) {
		t.Errorf("EndTransaction on idle connector: err = %v", err)
	}
}

func TestConnectorConfirmMismatch(t *testing.T) {
	c := NewConnector(1, 0, 0)
	start := time.Now()
	idTag := newIdTag()
	c.BeginTransaction(idTag, start)
	if c.ConfirmTransaction(idTag+"X", start, 1, nil) {
		t.Error("confirmation for another id tag accepted")
	}
	if c.ConfirmTransaction(idTag, start.Add(-time.Minute), 1, nil) {
		t.Error("confirmation for another start time accepted")
	}
	if !c.AbortTransaction(idTag, start) {
		t.Fatal("AbortTransaction failed")
	}
	if c.IsCharging() {
		t.Error("aborted session still charging")
	}
}

func TestConnectorInoperative(t *testing.T) {
	c := NewConnector(1, 0, 0)
	c.SetAvailability(core.AvailabilityTypeInoperative)
	if c.Status() != core.ChargePointStatusUnavailable {
		t.Errorf("status = %s", c.Status())
	}
	if _, ok := c.BeginTransaction(newIdTag(), time.Now()); ok {
		t.Error("inoperative connector started a transaction")
	}
	if status := c.Reserve(1, newIdTag(), time.Now().Add(time.Hour), time.Now()); status != reservation.ReservationStatusUnavailable {
		t.Errorf("Reserve = %s, want Unavailable", status)
	}
}

func TestConnectorReservation(t *testing.T) {
	c := NewConnector(1, 0, 0)
	now := time.Now()
	owner := newIdTag()
	if status := c.Reserve(5, owner, now.Add(time.Hour), now); status != reservation.ReservationStatusAccepted {
		t.Fatalf("Reserve = %s", status)
	}
	if c.Status() != core.ChargePointStatusReserved {
		t.Errorf("status = %s, want Reserved", c.Status())
	}
	if status := c.Reserve(6, newIdTag(), now.Add(time.Hour), now); status != reservation.ReservationStatusOccupied {
		t.Errorf("second reservation = %s, want Occupied", status)
	}
	if _, ok := c.BeginTransaction(owner+"X", now); ok {
		t.Error("reserved connector started for a foreign id tag")
	}
	session, ok := c.BeginTransaction(owner, now)
	if !ok {
		t.Fatal("reserved connector refused its owner")
	}
	if session.ReservationId == nil || *session.ReservationId != 5 {
		t.Errorf("session reservation id = %v", session.ReservationId)
	}
	if c.CancelReservation(5) {
		t.Error("consumed reservation cancelled again")
	}
}

func TestConnectorExpiredReservation(t *testing.T) {
	c := NewConnector(1, 0, 0)
	now := time.Now()
	c.Reserve(5, newIdTag(), now.Add(-time.Minute), now.Add(-time.Hour))
	if _, ok := c.BeginTransaction(newIdTag(), now); !ok {
		t.Error("expired reservation still blocks the connector")
	}
}

func TestConnectorTableResolve(t *testing.T) {
	single := NewConnectorTable(NewConnector(1, 0, 0))
	if c, ok := single.Resolve(nil); !ok || c.Id() != 1 {
		t.Error("single connector table does not resolve a missing id")
	}
	table := NewConnectorTable(NewConnector(2, 0, 0), NewConnector(1, 0, 0))
	if _, ok := table.Resolve(nil); ok {
		t.Error("missing id resolved on a multi connector table")
	}
	if _, ok := table.Resolve(intPtr(3)); ok {
		t.Error("unknown id resolved")
	}
	all := table.All()
	if len(all) != 2 || all[0].Id() != 1 || all[1].Id() != 2 {
		t.Errorf("All() not in id order")
	}
}

func TestConnectorTableFindByTransaction(t *testing.T) {
	c1, c2 := NewConnector(1, 0, 0), NewConnector(2, 0, 0)
	table := NewConnectorTable(c1, c2)
	start := time.Now()
	tag := newIdTag()
	c2.BeginTransaction(tag, start)
	if _, ok := table.FindByTransaction(0); ok {
		t.Error("unconfirmed session found by transaction id 0")
	}
	c2.ConfirmTransaction(tag, start, 9, nil)
	c, ok := table.FindByTransaction(9)
	if !ok || c.Id() != 2 {
		t.Error("transaction 9 not found on connector 2")
	}
	if table.ChargingCount() != 1 {
		t.Errorf("ChargingCount = %d", table.ChargingCount())
	}
}

func TestBroadcastIsAtomic(t *testing.T) {
	var connectors []*Connector
	for i := 1; i <= 8; i++ {
		connectors = append(connectors, NewConnector(i, 0, 0))
	}
	table := NewConnectorTable(connectors...)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			table.Broadcast(func(c *ConnectorState) {
				c.SetChargingProfile(&types.ChargingProfile{ChargingProfileId: id})
			})
		}(i)
		go func() {
			defer wg.Done()
			table.Broadcast(func(c *ConnectorState) {})
			connectors[3].SetAvailability(core.AvailabilityTypeOperative)
		}()
	}
	wg.Wait()
	want := connectors[0].ChargingProfile().ChargingProfileId
	for _, c := range connectors {
		if got := c.ChargingProfile().ChargingProfileId; got != want {
			t.Fatalf("connector %d has profile %d, connector 1 has %d", c.Id(), got, want)
		}
	}
}
