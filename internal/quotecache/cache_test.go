package quotecache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhkang/kiwoom-trader/internal/config"
	"github.com/dhkang/kiwoom-trader/internal/model"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Close()

	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "005930"); err != nil || ok {
		t.Errorf("Get on empty cache = ok %v, err %v; want miss", ok, err)
	}

	quote := model.Quote{
		Code:  "005930",
		Price: decimal.NewFromInt(71200),
	}
	if err := c.Set(ctx, quote); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := c.Get(ctx, "005930")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Get = miss, want hit")
	}
	if !got.Price.Equal(quote.Price) {
		t.Errorf("Price = %s, want %s", got.Price, quote.Price)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemory(10 * time.Millisecond)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, model.Quote{Code: "005930", Price: decimal.NewFromInt(71200)})

	time.Sleep(30 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "005930"); ok {
		t.Error("Get = hit after TTL, want miss")
	}
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, model.Quote{Code: "005930", Price: decimal.NewFromInt(71200)})
	c.Set(ctx, model.Quote{Code: "005930", Price: decimal.NewFromInt(71500)})

	got, ok, _ := c.Get(ctx, "005930")
	if !ok {
		t.Fatal("Get = miss, want hit")
	}
	if got.Price.String() != "71500" {
		t.Errorf("Price = %s, want 71500 (latest write wins)", got.Price)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	mem := New(config.CacheConfig{TTL: time.Minute}, nil)
	defer mem.Close()
	if _, ok := mem.(*memoryCache); !ok {
		t.Errorf("New without redis_addr = %T, want *memoryCache", mem)
	}

	rd := New(config.CacheConfig{RedisAddr: "localhost:6379", TTL: time.Minute}, nil)
	defer rd.Close()
	if _, ok := rd.(*redisCache); !ok {
		t.Errorf("New with redis_addr = %T, want *redisCache", rd)
	}
}
