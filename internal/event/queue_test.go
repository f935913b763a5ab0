package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushPop(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Push(Output{Text: "1"}))
	require.NoError(t, q.Push(Output{Text: "2"}))
	assert.Equal(t, 2, q.Len())

	ctx := context.Background()
	e, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, Output{Text: "1"}, e)

	e, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, Output{Text: "2"}, e)

	_, ok = q.TryPop()
	assert.False(t, ok)
}

func TestQueue_DrainReleasesBacking(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Push(Output{Text: "x"}))
	}

	for i := 0; i < 3; i++ {
		_, ok := q.TryPop()
		require.True(t, ok)
	}
	assert.NotNil(t, q.items)

	_, ok := q.TryPop()
	require.True(t, ok)
	assert.Nil(t, q.items)
	assert.Equal(t, 0, q.Len())

	require.NoError(t, q.Push(Output{Text: "y"}))
	_, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Nil(t, q.items)
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewQueue()

	got := make(chan Event, 1)
	go func() {
		e, err := q.Pop(context.Background())
		if err == nil {
			got <- e
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(Output{Text: "late"}))

	select {
	case e := <-got:
		assert.Equal(t, Output{Text: "late"}, e)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake")
	}
}

func TestQueue_PopRespectsContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Push(Shutdown{}))
	q.Close()

	assert.True(t, q.Closed())
	assert.ErrorIs(t, q.Push(Shutdown{}), ErrQueueClosed)

	e, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Shutdown{}, e)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_RejectsNil(t *testing.T) {
	assert.ErrorIs(t, NewQueue().Push(nil), ErrNilEvent)
}
