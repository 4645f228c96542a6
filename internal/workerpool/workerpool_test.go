package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRowsCoversEveryRowOnce(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	for _, n := range []int{1, 3, 4, 7, 100, 1001} {
		hits := make([]int32, n)
		pool.Rows(n, func(r0, r1 int) {
			for r := r0; r < r1; r++ {
				atomic.AddInt32(&hits[r], 1)
			}
		})
		for r, h := range hits {
			assert.Equalf(t, int32(1), h, "n=%d row %d", n, r)
		}
	}
}

func TestRowsZero(t *testing.T) {
	pool := New(2)
	defer pool.Close()

	called := false
	pool.Rows(0, func(int, int) { called = true })
	assert.False(t, called)
}

func TestNilPoolRunsInline(t *testing.T) {
	var pool *Pool
	var got [2]int
	pool.Rows(10, func(r0, r1 int) { got = [2]int{r0, r1} })
	assert.Equal(t, [2]int{0, 10}, got)
	assert.Equal(t, 1, pool.Size())
	pool.Close()
}

func TestClosedPoolFallsBack(t *testing.T) {
	pool := New(3)
	pool.Close()
	pool.Close()

	var mu sync.Mutex
	calls := 0
	pool.Rows(9, func(r0, r1 int) {
		mu.Lock()
		calls++
		mu.Unlock()
		assert.Equal(t, 0, r0)
		assert.Equal(t, 9, r1)
	})
	assert.Equal(t, 1, calls)
}

func TestDefaultSize(t *testing.T) {
	pool := New(0)
	defer pool.Close()
	assert.GreaterOrEqual(t, pool.Size(), 1)
}

func TestCloseDuringRows(t *testing.T) {
	for range 50 {
		pool := New(4)
		var wg sync.WaitGroup
		for range 4 {
			wg.Go(func() {
				hits := make([]int32, 64)
				pool.Rows(len(hits), func(r0, r1 int) {
					for r := r0; r < r1; r++ {
						atomic.AddInt32(&hits[r], 1)
					}
				})
				for r, h := range hits {
					assert.Equalf(t, int32(1), h, "row %d", r)
				}
			})
		}
		pool.Close()
		wg.Wait()
	}
}
