package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisHealthyUnreachable(t *testing.T) {
	r := NewRedis("127.0.0.1:1")
	t.Cleanup(func() { _ = r.Close() })
	assert.False(t, r.Healthy(context.Background()))

	var none *Redis
	assert.False(t, none.Healthy(context.Background()))
	assert.NoError(t, none.Close())
}
