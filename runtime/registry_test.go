package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"paluwagan/domain/pool"
	"paluwagan/mocks"
)

func TestRegistry_SubscribeAndResolve(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := NewRegistry()
	poolID := pool.PoolID("cycle-2026")

	// Given two sessions on the pool, one of them a second device
	sinkA := mocks.NewMockEventSink(ctrl)
	sinkB := mocks.NewMockEventSink(ctrl)
	registry.Subscribe("alice:1", poolID, sinkA)
	registry.Subscribe("alice:2", poolID, sinkB)

	req.Len(registry.SinksForPool(poolID), 2)
	req.Equal(2, registry.SessionCount())

	// An unknown pool resolves to nothing
	req.Nil(registry.SinksForPool(pool.PoolID("other")))
}

func TestRegistry_Unsubscribe(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := NewRegistry()
	poolID := pool.PoolID("cycle-2026")
	registry.Subscribe("alice:1", poolID, mocks.NewMockEventSink(ctrl))

	registry.Unsubscribe("alice:1", poolID)

	req.Equal(0, registry.SessionCount())
	req.Nil(registry.SinksForPool(poolID))

	// Dropping an unknown session is a no-op
	registry.Unsubscribe("ghost:1", poolID)
	req.Equal(0, registry.SessionCount())
}
