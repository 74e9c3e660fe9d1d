package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEmptyAddrDisables(t *testing.T) {
	g := New("", "", 0, time.Hour)
	assert.Nil(t, g)
}

func TestNilGuardFailsOpen(t *testing.T) {
	var g *Guard
	assert.True(t, g.FirstSeen(context.Background(), 1))
	g.Forget(context.Background(), 1)
	assert.NoError(t, g.Close())
}

func TestUnreachableRedisFailsOpen(t *testing.T) {
	// Port 1 is never a Redis server; every call errors and the guard must
	// still wave messages through.
	g := New("127.0.0.1:1", "", 0, time.Hour)
	t.Cleanup(func() { g.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.True(t, g.FirstSeen(ctx, 42))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ordersync:msg:42", key(42))
}
