package api

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"codalyzer-backend/analysis"

	"github.com/redis/go-redis/v9"
)

// Integração: precisa de um Redis acessível; sem ele o teste é pulado.
func newShareTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestShareStoreRoundTrip(t *testing.T) {
	rdb := newShareTestRedis(t)
	store := NewShareStore(rdb,
		WithSharePrefix("codalyzer:test:share:"),
		WithShareTTL(time.Minute),
	)
	ctx := context.Background()

	in := &analysis.Result{
		Summary:  "shared result",
		FileName: "main.py",
		Language: "python",
		Issues:   []analysis.Issue{{ID: "issue-1", Type: "Bug", Title: "off by one"}},
	}

	id, err := store.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer rdb.Del(ctx, "codalyzer:test:share:"+id)

	out, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Summary != in.Summary || len(out.Issues) != 1 || out.Issues[0].Title != "off by one" {
		t.Errorf("round trip mismatch: %+v", out)
	}

	// A chave nasce com TTL: expira sozinha sem processo de limpeza.
	ttl, err := rdb.TTL(ctx, "codalyzer:test:share:"+id).Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v, want within 1m", ttl)
	}
}

func TestShareStoreGetMissing(t *testing.T) {
	rdb := newShareTestRedis(t)
	store := NewShareStore(rdb, WithSharePrefix("codalyzer:test:share:"))

	_, err := store.Get(context.Background(), "does-not-exist")
	if !errors.Is(err, ErrShareNotFound) {
		t.Errorf("err = %v, want ErrShareNotFound", err)
	}
}
