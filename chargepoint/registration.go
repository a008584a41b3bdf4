package chargepoint

import (
	"evcp/ocpp/core"
	"sync"
	"time"
)

const MinHeartbeatInterval = 5 * time.Second

// Registration tracks the verdict of the last BootNotification
type Registration struct {
	mutex        sync.Mutex
	heartbeat    *Scheduler
	status       core.RegistrationStatus
	enabled      bool
	interval     time.Duration
	clockOffset  time.Duration
	lastCsmsTime time.Time
}

func NewRegistration(heartbeat *Scheduler, defaultInterval time.Duration) *Registration {
	heartbeat.Suspend()
	return &Registration{
		heartbeat: heartbeat,
		interval:  clampInterval(defaultInterval),
	}
}

func clampInterval(interval time.Duration) time.Duration {
	if interval < MinHeartbeatInterval {
		return MinHeartbeatInterval
	}
	return interval
}

// Apply updates status, interval and clock offset together and reschedules the heartbeat
// before releasing the lock, so no tick can observe a partial update
func (r *Registration) Apply(response *core.BootNotificationResponse, now time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.status = response.Status
	switch response.Status {
	case core.RegistrationStatusAccepted, core.RegistrationStatusPending:
		r.enabled = true
		r.interval = clampInterval(time.Duration(response.Interval) * time.Second)
		if response.CurrentTime != nil {
			r.syncClock(response.CurrentTime.Time, now)
		}
		r.heartbeat.Reset(r.interval)
	default:
		r.enabled = false
		r.heartbeat.Suspend()
	}
}

// SetInterval applies a locally configured heartbeat interval
func (r *Registration) SetInterval(interval time.Duration) time.Duration {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.interval = clampInterval(interval)
	if r.enabled {
		r.heartbeat.Reset(r.interval)
	}
	return r.interval
}

// UpdateClock takes the current time reported by the central system
func (r *Registration) UpdateClock(csmsTime time.Time, now time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.syncClock(csmsTime, now)
}

func (r *Registration) syncClock(t time.Time, now time.Time) {
	if t.IsZero() {
		return
	}
	r.lastCsmsTime = t
	r.clockOffset = t.Sub(now)
}

func (r *Registration) Status() core.RegistrationStatus {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.status
}

func (r *Registration) HeartbeatsEnabled() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.enabled
}

func (r *Registration) HeartbeatInterval() time.Duration {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.interval
}

func (r *Registration) ClockOffset() time.Duration {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.clockOffset
}

// Now returns local time corrected by the offset to the central system clock
func (r *Registration) Now() time.Time {
	return time.Now().Add(r.ClockOffset())
}
