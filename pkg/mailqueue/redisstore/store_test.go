package redisstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue/redisstore"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue/storetest"
)

// Set MAILQUEUE_TEST_REDIS_URL to run against a disposable Redis database.
func TestStore_Conformance(t *testing.T) {
	url := os.Getenv("MAILQUEUE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MAILQUEUE_TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	storetest.Run(t, func(t *testing.T) mailqueue.Store {
		// A fresh prefix per subtest keeps runs isolated without FLUSHDB.
		prefix := "mailqueue-test-" + uuid.NewString()
		t.Cleanup(func() {
			ctx := context.Background()
			iter := client.Scan(ctx, 0, prefix+":*", 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		})
		return redisstore.New(client, redisstore.WithPrefix(prefix))
	})
}
