package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/elacour/granary/internal/codec"
	"github.com/elacour/granary/internal/storage"
	"github.com/elacour/granary/internal/storage/memory"
)

// BenchmarkBackendPut benchmarks framed writes to the memory medium.
func BenchmarkBackendPut(b *testing.B) {
	cdc := codec.New(codec.WithCompression(true))
	ctx := context.Background()

	for _, count := range SmallItemCounts {
		b.Run(fmt.Sprintf("items_%d", count), func(b *testing.B) {
			backend, err := storage.NewBackend(memory.New(), storage.DefaultBackendConfig())
			if err != nil {
				b.Fatalf("NewBackend failed: %v", err)
			}
			payload, err := cdc.Encode(newSnapshot(count))
			if err != nil {
				b.Fatalf("Encode failed: %v", err)
			}
			b.SetBytes(int64(len(payload)))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				name := fmt.Sprintf("slot%d", i%10)
				if err := backend.Put(ctx, name, payload); err != nil {
					b.Fatalf("Put failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkBackendGet benchmarks verified reads from the memory medium.
func BenchmarkBackendGet(b *testing.B) {
	cdc := codec.New(codec.WithCompression(true))
	ctx := context.Background()

	for _, count := range SmallItemCounts {
		b.Run(fmt.Sprintf("items_%d", count), func(b *testing.B) {
			backend, err := storage.NewBackend(memory.New(), storage.DefaultBackendConfig())
			if err != nil {
				b.Fatalf("NewBackend failed: %v", err)
			}
			payload, err := cdc.Encode(newSnapshot(count))
			if err != nil {
				b.Fatalf("Encode failed: %v", err)
			}
			if err := backend.Put(ctx, "slot0", payload); err != nil {
				b.Fatalf("Put failed: %v", err)
			}
			b.SetBytes(int64(len(payload)))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := backend.Get(ctx, "slot0"); err != nil {
					b.Fatalf("Get failed: %v", err)
				}
			}
		})
	}
}
