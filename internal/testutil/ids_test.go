package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceIDs(t *testing.T) {
	gen := NewSequenceIDs("scn")
	assert.Equal(t, "scn-0001", gen.Generate())
	assert.Equal(t, "scn-0002", gen.Generate())

	assert.Equal(t, "run-0001", NewSequenceIDs("").Generate())
}

func TestSequenceIDs_Concurrent(t *testing.T) {
	gen := NewSequenceIDs("c")

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 500)
	assert.True(t, seen["c-0500"])
}

func TestFixedIDs(t *testing.T) {
	gen := NewFixedIDs("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	require.PanicsWithValue(t, "FixedIDs: all ids consumed", func() { gen.Generate() })
}
