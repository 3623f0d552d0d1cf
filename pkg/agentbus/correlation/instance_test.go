package correlation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceBeforeConfigure(t *testing.T) {
	resetInstance()
	t.Cleanup(resetInstance)

	v, err := Instance()
	assert.Nil(t, v)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Panics(t, func() { MustInstance() })
}

func TestConfigureFirstWins(t *testing.T) {
	resetInstance()
	t.Cleanup(resetInstance)

	first, err := Configure(WithFormat(`wf-`))
	require.NoError(t, err)

	second, err := Configure(WithFormat(`other-`))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, `wf-`, second.Format())
	assert.True(t, second.ValidateEvent(evt("a", "wf-1"), ""))
	assert.False(t, second.ValidateEvent(evt("a", "other-1"), ""))

	got, err := Instance()
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Same(t, first, MustInstance())
}

func TestConfigureFailureLeavesUnconfigured(t *testing.T) {
	resetInstance()
	t.Cleanup(resetInstance)

	_, err := Configure(WithFormat(`(`))
	require.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Instance()
	assert.ErrorIs(t, err, ErrNotConfigured)

	v, err := Configure()
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestConfigureConcurrent(t *testing.T) {
	resetInstance()
	t.Cleanup(resetInstance)

	const n = 32
	formats := []string{`a-`, `b-`, `c-`, `d-`}
	results := make([]*Validator, n)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			v, err := Configure(WithFormat(formats[i%len(formats)]))
			if err == nil {
				results[i] = v
			}
		}(i)
	}
	close(start)
	wg.Wait()

	winner := results[0]
	require.NotNil(t, winner)
	for i, v := range results {
		assert.Same(t, winner, v, "goroutine %d saw a different instance", i)
	}
	assert.Contains(t, formats, winner.Format())
}
