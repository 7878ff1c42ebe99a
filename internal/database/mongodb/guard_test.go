package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-connector/pkg/connector"
)

func TestGuard(t *testing.T) {
	g := newGuard(connector.ErrTransactionClosed)

	require.NoError(t, g.acquire())
	assert.ErrorIs(t, g.acquire(), connector.ErrConcurrentUse)
	assert.ErrorIs(t, g.transition(stateClosed), connector.ErrConcurrentUse)
	g.release()

	require.NoError(t, g.transition(stateBorrowed))
	assert.ErrorIs(t, g.acquire(), connector.ErrConnectionBorrowed)
	assert.False(t, g.restore(stateBusy))
	assert.True(t, g.restore(stateBorrowed))
	assert.True(t, g.is(stateIdle))

	require.NoError(t, g.transition(stateClosed))
	assert.ErrorIs(t, g.acquire(), connector.ErrTransactionClosed)

	// release never reopens a closed guard.
	g.release()
	assert.True(t, g.is(stateClosed))
}
