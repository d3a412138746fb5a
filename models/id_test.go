package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDGeneratorNext(t *testing.T) {
	t.Run("returns sequential ids", func(t *testing.T) {
		var ids IDGenerator
		require.Zero(t, ids.Last())

		for i := 1; i <= 5; i++ {
			require.Equal(t, uint32(i), ids.Next())
		}
		require.Equal(t, uint32(5), ids.Last())
	})

	t.Run("ids are unique across goroutines", func(t *testing.T) {
		var ids IDGenerator
		var mutex sync.Mutex
		var wg sync.WaitGroup
		seen := make(map[uint32]struct{})

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				for j := 0; j < 100; j++ {
					id := ids.Next()

					mutex.Lock()
					seen[id] = struct{}{}
					mutex.Unlock()
				}
			}()
		}

		wg.Wait()
		require.Len(t, seen, 800)
		require.Equal(t, uint32(800), ids.Last())
	})
}
