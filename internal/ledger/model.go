// Package ledger owns the durable per-booking session record: lifecycle
// timestamps, per-role join/disconnect counts and rolling QoS aggregates.
// All mutation goes through the Service so the monotonicity invariants
// (sample counts, first-join timestamps, end-reason immutability) are
// enforced in one place.
package ledger

import (
	"time"

	"github.com/mentorlink/consult/internal/domain"
)

// QoSAggregate is a rolling per-role quality summary. Samples only ever
// increases; averages are running means over the clamped inputs.
type QoSAggregate struct {
	Samples        int64   `json:"samples"`
	AvgRTTMs       float64 `json:"avgRttMs"`
	AvgJitter      float64 `json:"avgJitter"`
	AvgLoss        float64 `json:"avgLoss"`
	AvgBitrateKbps float64 `json:"avgBitrateKbps"`
}

func (a *QoSAggregate) fold(s Sample) {
	n := float64(a.Samples)
	a.Samples++
	d := float64(a.Samples)
	a.AvgRTTMs = (a.AvgRTTMs*n + s.RTTMs) / d
	a.AvgJitter = (a.AvgJitter*n + s.Jitter) / d
	a.AvgLoss = (a.AvgLoss*n + s.Loss) / d
	a.AvgBitrateKbps = (a.AvgBitrateKbps*n + s.BitrateKbps) / d
}

// Sample is one quality report from a live connection. Values are clamped to
// their valid ranges before folding, never rejected, so a partially bogus
// report still contributes what it can.
type Sample struct {
	RTTMs       float64 `json:"rttMs"`
	Jitter      float64 `json:"jitter"`
	Loss        float64 `json:"loss"`
	BitrateKbps float64 `json:"bitrateKbps"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamped returns the sample with every metric forced into its valid range.
func (s Sample) Clamped() Sample {
	const maxMetric = 1 << 30
	return Sample{
		RTTMs:       clamp(s.RTTMs, 0, maxMetric),
		Jitter:      clamp(s.Jitter, 0, 100),
		Loss:        clamp(s.Loss, 0, 100),
		BitrateKbps: clamp(s.BitrateKbps, 0, maxMetric),
	}
}

// Record is one booking's session lifecycle row. Created lazily on first
// join; immutable once EndReason is set.
type Record struct {
	BookingID      string    `gorm:"primaryKey;column:booking_id" json:"bookingId"`
	ScheduledStart time.Time `gorm:"column:scheduled_start" json:"scheduledStart"`
	ScheduledEnd   time.Time `gorm:"column:scheduled_end" json:"scheduledEnd"`

	ActualStart *time.Time `gorm:"column:actual_start" json:"actualStart,omitempty"`
	ActualEnd   *time.Time `gorm:"column:actual_end" json:"actualEnd,omitempty"`

	HostFirstJoin  *time.Time `gorm:"column:host_first_join" json:"hostFirstJoin,omitempty"`
	GuestFirstJoin *time.Time `gorm:"column:guest_first_join" json:"guestFirstJoin,omitempty"`

	HostJoins        int `gorm:"column:host_joins" json:"hostJoins"`
	GuestJoins       int `gorm:"column:guest_joins" json:"guestJoins"`
	HostDisconnects  int `gorm:"column:host_disconnects" json:"hostDisconnects"`
	GuestDisconnects int `gorm:"column:guest_disconnects" json:"guestDisconnects"`

	// Seconds spent in the waiting room, accrued per role when a waiter is
	// promoted to the live room or gives up waiting.
	HostWaitingSec  int64 `gorm:"column:host_waiting_sec" json:"hostWaitingSec"`
	GuestWaitingSec int64 `gorm:"column:guest_waiting_sec" json:"guestWaitingSec"`

	HostQoS  QoSAggregate `gorm:"embedded;embeddedPrefix:host_qos_" json:"hostQos"`
	GuestQoS QoSAggregate `gorm:"embedded;embeddedPrefix:guest_qos_" json:"guestQos"`

	EndReason string `gorm:"column:end_reason" json:"endReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Record) TableName() string { return "session_records" }

// Ended reports whether the record has been finalized.
func (r *Record) Ended() bool { return r.EndReason != "" }

// DurationSec is only computable once both actual timestamps are set.
func (r *Record) DurationSec() (int64, bool) {
	if r.ActualStart == nil || r.ActualEnd == nil {
		return 0, false
	}
	return int64(r.ActualEnd.Sub(*r.ActualStart) / time.Second), true
}

func (r *Record) aggregate(role domain.Role) *QoSAggregate {
	if role == domain.RoleHost {
		return &r.HostQoS
	}
	return &r.GuestQoS
}
