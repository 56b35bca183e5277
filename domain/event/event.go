package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paluwagan/domain/pool"
)

// DomainEvent is anything the broadcaster can fan out to live sessions.
// Events are self-describing: they carry the updated aggregate, not a diff,
// so a client that misses one can resynchronize from a snapshot.
type DomainEvent interface {
	Pool() pool.PoolID
}

// AllocationCommitted is published after a draw commits: the member now
// owns the slot and the slot left the available set.
type AllocationCommitted struct {
	PoolID         pool.PoolID     `json:"poolId"`
	Allocation     pool.Allocation `json:"allocation"`
	Codename       string          `json:"codename"`
	AvailableSlots int             `json:"availableSlots"`
	At             time.Time       `json:"at"`
}

func (e AllocationCommitted) Pool() pool.PoolID { return e.PoolID }

// ContributionRecorded is published after the ledger accepts a payment
// mark. It carries the full per-slot tally and the schedule status so
// subscribers never need to replay a log.
type ContributionRecorded struct {
	PoolID         pool.PoolID         `json:"poolId"`
	ScheduleID     uuid.UUID           `json:"scheduleId"`
	SlotID         uuid.UUID           `json:"slotId"`
	SlotName       string              `json:"slotName"`
	MemberID       uuid.UUID           `json:"memberId"`
	Codename       string              `json:"codename"`
	Amount         decimal.Decimal     `json:"amount"`
	PaidCount      int                 `json:"paidCount"`
	Required       int                 `json:"required"`
	SlotSettled    bool                `json:"slotSettled"`
	ScheduleStatus pool.ScheduleStatus `json:"scheduleStatus"`
	At             time.Time           `json:"at"`
}

func (e ContributionRecorded) Pool() pool.PoolID { return e.PoolID }

// DrawLockExpired is an internal housekeeping event emitted by the janitor
// when a drawing lock times out and the slot returns to the available set.
// It is not forwarded to client sessions, only to permanent sinks.
type DrawLockExpired struct {
	PoolID   pool.PoolID `json:"poolId"`
	MemberID uuid.UUID   `json:"memberId"`
	SlotID   uuid.UUID   `json:"slotId"`
	At       time.Time   `json:"at"`
}

func (e DrawLockExpired) Pool() pool.PoolID { return e.PoolID }

// Kind names an event for wire envelopes and metric labels.
func Kind(evt DomainEvent) string {
	switch evt.(type) {
	case AllocationCommitted:
		return "allocation_committed"
	case ContributionRecorded:
		return "contribution_recorded"
	case DrawLockExpired:
		return "draw_lock_expired"
	default:
		return fmt.Sprintf("%T", evt)
	}
}
