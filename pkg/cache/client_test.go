package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/cyberguard/guardian/pkg/cache"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestClient_SetAndGet(t *testing.T) {
	rc, mock := redismock.NewClientMock()
	c := cache.NewClientFromRedis(rc)

	mock.ExpectSet(cache.TwitterSinceIDKey, "1234", 0).SetVal("OK")
	mock.ExpectGet(cache.TwitterSinceIDKey).SetVal("1234")

	err := c.Set(context.Background(), cache.TwitterSinceIDKey, "1234", 0)
	assert.NoError(t, err)

	got, err := c.Get(context.Background(), cache.TwitterSinceIDKey)
	assert.NoError(t, err)
	assert.Equal(t, "1234", got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_Delete(t *testing.T) {
	rc, mock := redismock.NewClientMock()
	c := cache.NewClientFromRedis(rc)

	mock.ExpectDel(cache.ConnectedPlatformsKey).SetVal(1)

	err := c.Delete(context.Background(), cache.ConnectedPlatformsKey)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_SetWithExpiration(t *testing.T) {
	rc, mock := redismock.NewClientMock()
	c := cache.NewClientFromRedis(rc)

	mock.ExpectSet("guardian:reddit:token", "abc", time.Hour).SetVal("OK")

	err := c.Set(context.Background(), "guardian:reddit:token", "abc", time.Hour)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
