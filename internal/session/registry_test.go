package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/docquiz/internal/session"
	"github.com/victornm/docquiz/internal/task"
)

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	s := makeService(t)
	ss, err := s.StartGame(context.Background(), session.StartGameRequest{DocumentRef: "doc-1"})
	require.NoError(t, err)

	r := s.Registry()
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove(ss.SessionID))
	assert.False(t, r.Remove(ss.SessionID))
	assert.Zero(t, r.Len())

	_, ok := r.Cache(ss.SessionID)
	assert.False(t, ok)
}

func TestRegistry_ExpireEmpty(t *testing.T) {
	tasks := task.NewSupervisor()
	t.Cleanup(tasks.Stop)

	r := session.NewRegistry(tasks)
	assert.Empty(t, r.Expire(time.Now(), time.Minute))
	_, ok := r.Cache("unknown")
	assert.False(t, ok)
}
