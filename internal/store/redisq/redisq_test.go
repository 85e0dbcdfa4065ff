package redisq

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store/storetest"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textindex/pkg/redis"
)

// skipIfNoRedis skips the test when Redis is unavailable and otherwise
// returns a repository under a prefix unique to the test.
func skipIfNoRedis(t *testing.T) *Repository {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: addr, PoolSize: 2})
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	prefix := fmt.Sprintf("textindex_test:%s:%d:", t.Name(), time.Now().UnixNano())
	repo := New(client, prefix)
	t.Cleanup(func() {
		repo.Clear(context.Background())
		client.Close()
	})
	return repo
}

func TestRepository(t *testing.T) {
	storetest.RunFrequentQueries(t, skipIfNoRedis(t))
}

func TestPruneToCeiling(t *testing.T) {
	repo := skipIfNoRedis(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		q := fmt.Sprintf("query-%02d", i)
		for j := 0; j <= i; j++ {
			if _, err := repo.Increment(ctx, q); err != nil {
				t.Fatal(err)
			}
		}
	}
	removed, err := repo.DeleteLowest(ctx, 5)
	if err != nil || removed != 5 {
		t.Fatalf("DeleteLowest = %d, %v; want 5", removed, err)
	}
	for i := 0; i < 5; i++ {
		if got, _ := repo.Get(ctx, fmt.Sprintf("query-%02d", i)); got != nil {
			t.Errorf("query-%02d should have been evicted", i)
		}
	}
	if n, _ := repo.Count(ctx); n != 15 {
		t.Errorf("Count = %d, want 15", n)
	}
}
