package benchmark

import (
	"fmt"
	"testing"

	"github.com/elacour/granary/internal/codec"
)

// BenchmarkEncode benchmarks snapshot encoding at various inventory sizes.
func BenchmarkEncode(b *testing.B) {
	cdc := codec.New(codec.WithCompression(true))

	for _, count := range ItemCounts {
		b.Run(fmt.Sprintf("items_%d", count), func(b *testing.B) {
			s := newSnapshot(count)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := cdc.Encode(s); err != nil {
					b.Fatalf("Encode failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkEncodeCompact benchmarks forced key compression.
func BenchmarkEncodeCompact(b *testing.B) {
	cdc := codec.New(codec.WithCompression(true))

	for _, count := range SmallItemCounts {
		b.Run(fmt.Sprintf("items_%d", count), func(b *testing.B) {
			s := newSnapshot(count)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := cdc.EncodeCompact(s); err != nil {
					b.Fatalf("EncodeCompact failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkDecode benchmarks decoding of compressed payloads.
func BenchmarkDecode(b *testing.B) {
	cdc := codec.New(codec.WithCompression(true))

	for _, count := range ItemCounts {
		b.Run(fmt.Sprintf("items_%d", count), func(b *testing.B) {
			payload, err := cdc.Encode(newSnapshot(count))
			if err != nil {
				b.Fatalf("Encode failed: %v", err)
			}
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := cdc.Decode(payload); err != nil {
					b.Fatalf("Decode failed: %v", err)
				}
			}
		})
	}
}
