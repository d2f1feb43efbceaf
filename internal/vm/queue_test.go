package vm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileQueue_FIFO(t *testing.T) {
	q := newCompileQueue()

	for level := range 3 {
		require.True(t, q.Enqueue(compileTask{method: "K.m", level: level}))
	}
	assert.Equal(t, 3, q.Len())

	for want := range 3 {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.level)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestCompileQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newCompileQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(compileTask{method: "K.m"}))
	_, open := <-q.Wait()
	assert.False(t, open, "signal channel should be closed")
}

func TestCompileQueue_ConcurrentEnqueue(t *testing.T) {
	q := newCompileQueue()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(compileTask{level: i})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, q.Len())
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Last())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Last())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("run-1", "run-2")
	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-2", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator_Sortable(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, a[:13], b[:13], "v7 ids carry a millisecond timestamp prefix")
}
