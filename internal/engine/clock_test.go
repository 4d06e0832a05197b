package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_Numbering(t *testing.T) {
	tests := []struct {
		name  string
		clock *Clock
		want  []int64
	}{
		{"fresh", NewClock(), []int64{1, 2, 3}},
		{"resumed", NewClockAt(41), []int64{42, 43}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int64
			for range tt.want {
				got = append(got, tt.clock.Next())
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want[len(tt.want)-1], tt.clock.Current())
		})
	}
}

func TestClock_CurrentIsStable(t *testing.T) {
	c := NewClockAt(7)
	assert.Equal(t, int64(7), c.Current())
	assert.Equal(t, int64(7), c.Current())
}

// Passes are numbered from several sessions sharing one clock.
func TestClock_SharedAcrossGoroutines(t *testing.T) {
	c := NewClock()
	const workers, passes = 8, 250

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[int64]int)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range passes {
				n := c.Next()
				mu.Lock()
				seen[n]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*passes)
	for n := int64(1); n <= workers*passes; n++ {
		assert.Equal(t, 1, seen[n], "pass %d", n)
	}
	assert.Equal(t, int64(workers*passes), c.Current())
}
