package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_ReserveAndRelease(t *testing.T) {
	q := NewQueue(2)
	assert.Equal(t, 2, q.Cap())

	require.True(t, q.TryReserve())
	require.True(t, q.TryReserve())
	assert.False(t, q.TryReserve())
	assert.Equal(t, 2, q.Len())

	q.Push("a")
	q.Push("b")

	assert.Equal(t, "a", <-q.Items())
	q.Release()
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.TryReserve())
}

func TestQueue_CloseDrainsInOrder(t *testing.T) {
	q := NewQueue(3)
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.TryReserve())
		q.Push(id)
	}
	q.Close()
	q.Close()

	var got []string
	for id := range q.Items() {
		q.Release()
		got = append(got, id)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Zero(t, q.Len())
}
