package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRegistry_Resolve_InvalidDSNFailsWithoutCaching(t *testing.T) {
	r := NewPoolRegistry()
	defer r.Shutdown()

	_, err := r.Resolve(context.Background(), "not a valid dsn")
	require.Error(t, err)

	r.mu.Lock()
	_, cached := r.pools["not a valid dsn"]
	r.mu.Unlock()
	assert.False(t, cached, "a failed Resolve must not leave a pool cached for its DSN")
}
