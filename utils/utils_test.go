package utils_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"anarchy.ttfm/storefront/utils"
	"github.com/stretchr/testify/assert"
)

func Test_Clamp(t *testing.T) {
	assertions := assert.New(t)

	assertions.Equal(6, utils.Clamp(12, 0, 6))
	assertions.Equal(0, utils.Clamp(-1, 0, 6))
	assertions.Equal(3, utils.Clamp(3, 0, 6))
	assertions.Equal(1.5, utils.Clamp(1.5, 0, 2.0))
}

func Test_KeyedMutex(t *testing.T) {
	t.Run("Serializes same key", func(t *testing.T) {
		assertions := assert.New(t)

		k := utils.NewKeyedMutex()

		var (
			wg      sync.WaitGroup
			inside  atomic.Int32
			maximum atomic.Int32
		)
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := k.Lock("order")
				defer unlock()

				current := inside.Add(1)
				if current > maximum.Load() {
					maximum.Store(current)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
			}()
		}
		wg.Wait()

		assertions.Equal(int32(1), maximum.Load(), "more than one holder at once")
		assertions.Equal(0, k.Len(), "entries leaked")
	})
	t.Run("Distinct keys do not block", func(t *testing.T) {
		assertions := assert.New(t)

		k := utils.NewKeyedMutex()
		unlockA := k.Lock("a")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			unlock := k.Lock("b")
			unlock()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			assertions.Fail("lock on b blocked by a")
		}
	})
}

func Test_JobPool(t *testing.T) {
	assertions := assert.New(t)

	pool := utils.NewJobPool(1)
	pool.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := pool.GetContext(ctx)
	assertions.ErrorIs(err, context.DeadlineExceeded)

	pool.Put()
	err = pool.GetContext(context.Background())
	assertions.Nil(err)
}
