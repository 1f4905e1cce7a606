package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type entry struct {
	Number int    `json:"number"`
	Status string `json:"status"`
}

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := HeatsKey("100m", "ev-1")
	var got []entry
	found, err := c.Get(ctx, key, &got)
	if err != nil || found {
		t.Fatalf("empty cache: found=%v err=%v", found, err)
	}
	want := []entry{{Number: 1, Status: "partial"}, {Number: 999, Status: "empty"}}
	if err := c.Set(ctx, key, want); err != nil {
		t.Fatalf("set: %v", err)
	}
	found, err = c.Get(ctx, key, &got)
	if err != nil || !found || len(got) != 2 || got[1].Number != 999 {
		t.Fatalf("get: %+v found=%v err=%v", got, found, err)
	}
	if err := c.Delete(ctx, Keys("100m", "ev-1")...); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if found, _ := c.Get(ctx, key, &got); found {
		t.Fatalf("key should be gone after delete")
	}
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedis(client, time.Minute)
	exercise(t, c)

	if err := c.Set(context.Background(), ScoresKey("m", "e"), []int{1}); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("olimpia:scores:m:e"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}
	mr.FastForward(2 * time.Minute)
	var v []int
	if found, _ := c.Get(context.Background(), ScoresKey("m", "e"), &v); found {
		t.Fatalf("expired key returned")
	}
}

func TestLocalCache(t *testing.T) {
	exercise(t, NewLocal(8, time.Minute))
}

func TestNopCache(t *testing.T) {
	var c Cache = Nop{}
	if err := c.Set(context.Background(), "k", 1); err != nil {
		t.Fatal(err)
	}
	var v int
	if found, _ := c.Get(context.Background(), "k", &v); found {
		t.Fatalf("nop cache must never hit")
	}
}
