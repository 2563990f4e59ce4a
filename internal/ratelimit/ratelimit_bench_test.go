package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

var benchConfig = Config{Limit: 10000, Window: time.Hour}

func BenchmarkFixedWindow_Check(b *testing.B) {
	rl := NewFixedWindow()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rl.Check(ctx, "203.0.113.1", benchConfig)
	}
}

func BenchmarkFixedWindow_Check_Parallel(b *testing.B) {
	rl := NewFixedWindow()
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rl.Check(ctx, "203.0.113.1", benchConfig)
		}
	})
}

func BenchmarkFixedWindow_MultipleClients(b *testing.B) {
	rl := NewFixedWindow()
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprintf("203.0.113.%d", i%100)
			rl.Check(ctx, key, benchConfig)
			i++
		}
	})
}

func BenchmarkFixedWindow_HighContention(b *testing.B) {
	rl := NewFixedWindow()
	ctx := context.Background()

	var wg sync.WaitGroup
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		wg.Add(10)
		for j := 0; j < 10; j++ {
			go func() {
				defer wg.Done()
				rl.Check(ctx, "203.0.113.1", benchConfig)
			}()
		}
		wg.Wait()
	}
}

func BenchmarkFixedWindow_Sweep(b *testing.B) {
	rl := NewFixedWindow()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		rl.Check(ctx, fmt.Sprintf("key-%d", i), benchConfig)
	}
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rl.Sweep(now)
	}
}
