package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/visa-advisor/internal/engine"
	"github.com/todmy/visa-advisor/internal/rules"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()

	id, c := m.Create(engine.NewRuleSet(rules.ByTrack(rules.TrackE)))
	require.NotNil(t, c)
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, c, got)

	m.Delete(id)
	assert.Zero(t, m.Len())

	_, err = m.Get(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerGetUnknownID(t *testing.T) {
	m := NewManager()
	_, err := m.Get(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerConcurrentCreate(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Create(engine.NewRuleSet(rules.ByTrack(rules.TrackB)))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, m.Len())
}
