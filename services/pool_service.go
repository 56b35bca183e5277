package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"paluwagan/domain/pool"
	"paluwagan/engine"
	"paluwagan/errors"
	"paluwagan/ledger"
	"paluwagan/observability"
	"paluwagan/repositories"
	"paluwagan/runtime"
	"paluwagan/sink"
)

// PoolService is the application surface the gateway calls: draw, pay,
// snapshot, subscribe, plus the admin operations on slots and members.
type PoolService struct {
	poolID     pool.PoolID
	log        *slog.Logger
	engine     *engine.Engine
	ledger     *ledger.Ledger
	registry   *runtime.Registry
	members    repositories.IMemberRepository
	metrics    *observability.Metrics
	clock      clockwork.Clock
	bufferSize int
}

func NewPoolService(
	poolID pool.PoolID,
	eng *engine.Engine,
	led *ledger.Ledger,
	registry *runtime.Registry,
	members repositories.IMemberRepository,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	connectionBufferSize int,
	log *slog.Logger,
) *PoolService {
	return &PoolService{
		poolID:     poolID,
		log:        log,
		engine:     eng,
		ledger:     led,
		registry:   registry,
		members:    members,
		metrics:    metrics,
		clock:      clock,
		bufferSize: connectionBufferSize,
	}
}

// AvailableSlots lists the slots a draw could currently land on, in cycle
// order.
func (s *PoolService) AvailableSlots() []pool.Slot {
	return s.engine.Registry().ListAvailable(s.clock.Now())
}

// AllSlots lists the whole catalog for admin screens.
func (s *PoolService) AllSlots() []pool.Slot {
	return s.engine.Registry().All()
}

// RequestDraw runs the fair draw for a member. Reused is true when the
// member already held an allocation and got it back unchanged.
func (s *PoolService) RequestDraw(ctx context.Context, memberID uuid.UUID) (pool.Allocation, bool, error) {
	a, reused, err := s.engine.RequestDraw(ctx, memberID)
	switch {
	case err != nil:
		s.metrics.DrawsTotal.WithLabelValues(errors.Code(err)).Inc()
	case reused:
		s.metrics.DrawsTotal.WithLabelValues("reused").Inc()
	default:
		s.metrics.DrawsTotal.WithLabelValues("committed").Inc()
		s.log.Info("Allocation committed",
			"member_id", memberID, "slot_id", a.SlotID, "number", a.Number)
	}
	return a, reused, err
}

// RecordContribution marks one member's payment against a slot.
func (s *PoolService) RecordContribution(ctx context.Context, memberID, slotID uuid.UUID) (ledger.Receipt, error) {
	receipt, err := s.ledger.RecordContribution(ctx, memberID, slotID)
	if err != nil {
		s.metrics.ContributionsTotal.WithLabelValues(errors.Code(err)).Inc()
		return receipt, err
	}
	s.metrics.ContributionsTotal.WithLabelValues("recorded").Inc()
	s.log.Info("Contribution recorded",
		"member_id", memberID, "slot_id", slotID,
		"paid_count", receipt.PaidCount, "schedule_status", receipt.ScheduleStatus)
	return receipt, nil
}

// Snapshot returns the full schedule aggregate for resynchronization.
func (s *PoolService) Snapshot() pool.Schedule {
	return s.ledger.Snapshot()
}

// Subscribe binds a new session to the pool's event stream and returns its
// id together with the sink the connection handler drains.
func (s *PoolService) Subscribe(memberID uuid.UUID) (string, *sink.SessionSink) {
	sessionID := memberID.String() + ":" + uuid.NewString()
	sessionSink := sink.NewSessionSink(s.bufferSize, s.metrics.SinkFailuresTotal.Inc)
	s.registry.Subscribe(sessionID, s.poolID, sessionSink)
	s.metrics.ConnectedSessions.Set(float64(s.registry.SessionCount()))
	return sessionID, sessionSink
}

// Unsubscribe disconnects a session.
func (s *PoolService) Unsubscribe(sessionID string) {
	s.registry.Unsubscribe(sessionID, s.poolID)
	s.metrics.ConnectedSessions.Set(float64(s.registry.SessionCount()))
}

// CreateSlot, UpdateSlot and ArchiveSlot are the admin catalog operations
// behind the dashboard's product screens.
func (s *PoolService) CreateSlot(name, category string, number int, amount decimal.Decimal) (pool.Slot, error) {
	return s.engine.Registry().Create(name, category, number, amount)
}

func (s *PoolService) UpdateSlot(id uuid.UUID, name, category *string, amount *decimal.Decimal, isActive *bool) (pool.Slot, error) {
	return s.engine.Registry().Update(id, name, category, amount, isActive)
}

func (s *PoolService) ArchiveSlot(id uuid.UUID) (pool.Slot, error) {
	return s.engine.Registry().Archive(id)
}

// SetMemberActive suspends or reactivates a member.
func (s *PoolService) SetMemberActive(id uuid.UUID, active bool) (pool.Member, error) {
	return s.members.SetActive(id, active)
}

// DrawLockTTL is surfaced so the gateway can tell clients how long a
// two-step draw stays reserved.
func (s *PoolService) DrawLockTTL() time.Duration {
	return s.engine.LockTTL()
}
