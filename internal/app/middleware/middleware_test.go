package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayhub/internal/app/commands"
	"stayhub/internal/domain/booking"
)

type result struct {
	ID string `json:"id"`
}

type createThing struct {
	Name      string `validate:"required"`
	Actor     booking.UserID
	ReplayKey string
}

func (createThing) Key() string { return "thing.create" }

func (c createThing) IdempotencyKey() string { return c.ReplayKey }

func (createThing) ResultPrototype() any { return &result{} }

func (c createThing) ActorID() booking.UserID { return c.Actor }

type memoryStore struct {
	mu   sync.Mutex
	recs map[string]IdempotencyRecord
}

func (m *memoryStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	return rec, ok, nil
}

func (m *memoryStore) Save(_ context.Context, rec IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Key] = rec
	return nil
}

type users map[booking.UserID]bool

func (u users) Exists(_ context.Context, id booking.UserID) (bool, error) { return u[id], nil }
func (u users) Role(context.Context, booking.UserID) (booking.Role, error) {
	return booking.RoleGuest, nil
}

func countingBus(calls *int, fail error) commands.Bus {
	reg := commands.NewRegistry()
	commands.Register[createThing, *result](reg, "thing.create", commands.HandlerFunc[createThing, *result](
		func(_ context.Context, cmd createThing) (*result, error) {
			*calls++
			if fail != nil {
				return nil, fail
			}
			return &result{ID: cmd.Name}, nil
		}))
	return reg
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	calls := 0
	store := &memoryStore{recs: map[string]IdempotencyRecord{}}
	bus := ChainCommands(countingBus(&calls, nil), Idempotency(store, nil, nil))
	cmd := createThing{Name: "a", ReplayKey: "k-1"}

	first, err := commands.Dispatch[createThing, *result](context.Background(), bus, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[createThing, *result](context.Background(), bus, cmd)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestIdempotencyKeyIsScopedToActor(t *testing.T) {
	calls := 0
	store := &memoryStore{recs: map[string]IdempotencyRecord{}}
	bus := ChainCommands(countingBus(&calls, nil), Idempotency(store, nil, nil))
	ctx := context.Background()

	mine, err := commands.Dispatch[createThing, *result](ctx, bus, createThing{Name: "a", Actor: "guest-1", ReplayKey: "k1"})
	require.NoError(t, err)
	theirs, err := commands.Dispatch[createThing, *result](ctx, bus, createThing{Name: "b", Actor: "guest-2", ReplayKey: "k1"})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "a", mine.ID)
	assert.Equal(t, "b", theirs.ID)
	assert.Len(t, store.recs, 2)
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	calls := 0
	store := &memoryStore{recs: map[string]IdempotencyRecord{}}
	bus := ChainCommands(countingBus(&calls, nil), Idempotency(store, nil, nil))
	ctx := context.Background()

	_, err := bus.Dispatch(ctx, createThing{Name: "a", Actor: "guest-1", ReplayKey: "k1"})
	require.NoError(t, err)
	_, err = bus.Dispatch(ctx, createThing{Name: "other", Actor: "guest-1", ReplayKey: "k1"})
	assert.ErrorIs(t, err, ErrIdempotencyReuse)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyDoesNotCacheFailures(t *testing.T) {
	calls := 0
	store := &memoryStore{recs: map[string]IdempotencyRecord{}}
	boom := errors.New("boom")
	bus := ChainCommands(countingBus(&calls, boom), Idempotency(store, nil, nil))
	cmd := createThing{Name: "a", ReplayKey: "k-1"}

	_, err := bus.Dispatch(context.Background(), cmd)
	assert.ErrorIs(t, err, boom)
	_, err = bus.Dispatch(context.Background(), cmd)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestValidationAndAuthorization(t *testing.T) {
	calls := 0
	bus := ChainCommands(countingBus(&calls, nil),
		Authorization(ActorAuthorizer{Users: users{"u-1": true}}),
		Validation(NewStructValidator()),
	)

	_, err := bus.Dispatch(context.Background(), createThing{Name: "a"})
	assert.ErrorIs(t, err, ErrActorMissing)

	_, err = bus.Dispatch(context.Background(), createThing{Name: "a", Actor: "ghost"})
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	_, err = bus.Dispatch(context.Background(), createThing{Actor: "u-1"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = bus.Dispatch(context.Background(), createThing{Name: "a", Actor: "u-1"})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestTracingPassesThrough(t *testing.T) {
	calls := 0
	bus := ChainCommands(countingBus(&calls, nil), Tracing())

	res, err := commands.Dispatch[createThing, *result](context.Background(), bus, createThing{Name: "x"})

	require.NoError(t, err)
	assert.Equal(t, "x", res.ID)
}
