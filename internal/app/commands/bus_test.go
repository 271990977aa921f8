package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echo struct{ Text string }

func (echo) Key() string { return "test.echo" }

type other struct{}

func (other) Key() string { return "test.other" }

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()
	Register[echo, string](reg, "test.echo", HandlerFunc[echo, string](func(_ context.Context, cmd echo) (string, error) {
		return cmd.Text + "!", nil
	}))

	out, err := Dispatch[echo, string](context.Background(), reg, echo{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)

	_, err = Dispatch[echo, int](context.Background(), reg, echo{Text: "hi"})
	assert.ErrorIs(t, err, ErrResultType)

	_, err = reg.Dispatch(context.Background(), other{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	_, err = Dispatch[echo, string](context.Background(), nil, echo{})
	assert.ErrorIs(t, err, ErrNilBus)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	h := HandlerFunc[echo, string](func(context.Context, echo) (string, error) { return "", nil })
	Register[echo, string](reg, "test.echo", h)

	assert.Panics(t, func() { Register[echo, string](reg, "test.echo", h) })
}
