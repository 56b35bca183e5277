// Package pool holds the core paluwagan domain types: slots, members,
// allocations, contributions and the derived schedule aggregate.
package pool

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PoolID identifies one rotating-savings pool. Every session, slot and
// event is scoped to a pool.
type PoolID string

// ScheduleStatus tracks whether a pool cycle has collected every required
// contribution.
type ScheduleStatus string

const (
	SchedulePending ScheduleStatus = "pending"
	ScheduleSettled ScheduleStatus = "settled"
)

// PaymentStatus is the state of a single contribution record.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Slot is one payout position in a pool cycle. The cycle number is unique
// within the pool and defines the payout order.
type Slot struct {
	ID         uuid.UUID       `json:"id"`
	PoolID     PoolID          `json:"poolId"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Number     int             `json:"number"`
	Amount     decimal.Decimal `json:"amount"`
	IsActive   bool            `json:"isActive"`
	IsOccupied bool            `json:"isOccupied"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Member is the read-only identity the core receives from the auth
// collaborator. A suspended member may neither draw nor pay.
type Member struct {
	ID        uuid.UUID `json:"id"`
	Codename  string    `json:"codename"`
	Roles     []string  `json:"roles"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsAdmin reports whether the member carries the admin role.
func (m Member) IsAdmin() bool {
	for _, r := range m.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}

// Allocation binds exactly one member to exactly one slot for the lifetime
// of a pool cycle. Immutable once committed.
type Allocation struct {
	ID          uuid.UUID       `json:"id"`
	PoolID      PoolID          `json:"poolId"`
	MemberID    uuid.UUID       `json:"memberId"`
	SlotID      uuid.UUID       `json:"slotId"`
	SlotName    string          `json:"slotName"`
	Number      int             `json:"number"`
	Amount      decimal.Decimal `json:"amount"`
	CommittedAt time.Time       `json:"committedAt"`
}

// Contribution is one member's payment event against one slot. At most one
// paid contribution exists per (member, slot) pair in a cycle.
type Contribution struct {
	ID       uuid.UUID     `json:"id"`
	PoolID   PoolID        `json:"poolId"`
	SlotID   uuid.UUID     `json:"slotId"`
	MemberID uuid.UUID     `json:"memberId"`
	Status   PaymentStatus `json:"status"`
	At       time.Time     `json:"at"`
}

// SlotAggregate is the per-slot view inside a schedule snapshot: the
// allocation plus its contribution tally.
type SlotAggregate struct {
	Slot          Slot           `json:"slot"`
	Allocation    *Allocation    `json:"allocation,omitempty"`
	Contributions []Contribution `json:"contributions"`
	PaidCount     int            `json:"paidCount"`
	Required      int            `json:"required"`
	Settled       bool           `json:"settled"`
}

// Schedule is the ordered collection of all allocations for a pool cycle,
// maintained by the ledger as contributions accumulate. Self-describing:
// clients resynchronize from it after missed events.
type Schedule struct {
	ID          uuid.UUID       `json:"id"`
	PoolID      PoolID          `json:"poolId"`
	Slots       []SlotAggregate `json:"slots"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      ScheduleStatus  `json:"status"`
}
