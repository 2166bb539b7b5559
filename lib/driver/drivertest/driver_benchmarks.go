package drivertest

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/syndb/syndb/lib/driver"
)

// RunDriverBenchmarks runs all benchmarks for a driver.Driver implementation
func RunDriverBenchmarks(b *testing.B, name string, factory driver.DriverFactory) {

	b.Run("Insert", func(b *testing.B) {
		benchmarkInsert(b, factory())
	})

	b.Run("Update", func(b *testing.B) {
		benchmarkUpdate(b, factory())
	})

	b.Run("Fetch", func(b *testing.B) {
		benchmarkFetch(b, factory())
	})

	b.Run("Fetch(miss)", func(b *testing.B) {
		benchmarkFetchMiss(b, factory())
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory())
	})

	b.Run("Tx", func(b *testing.B) {
		benchmarkTx(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Insert operation
func benchmarkInsert(b *testing.B, d driver.Driver) {

	b.Cleanup(func() {
		d.Close()
	})

	requireFeature(b, d, driver.FeatureInsert)

	var counter atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		conn := mustOpen(b, d)
		defer conn.Close()

		for pb.Next() {
			pk := counter.Add(1)
			if err := conn.Insert("bench", pk, []byte(fmt.Sprintf("value-%d", pk))); err != nil {
				b.Fatalf("Insert failed: %v", err)
			}
		}
	})
}

// Benchmark for Update operation on existing rows
func benchmarkUpdate(b *testing.B, d driver.Driver) {

	b.Cleanup(func() {
		d.Close()
	})

	requireFeature(b, d, driver.FeatureInsert|driver.FeatureUpdate)

	// Prepare data
	const numRows = 1 << 14
	conn := mustOpen(b, d)
	defer conn.Close()
	for i := uint64(0); i < numRows; i++ {
		if err := conn.Insert("bench", i, []byte(fmt.Sprintf("value-%d", i))); err != nil {
			b.Fatalf("Insert failed: %v", err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		conn := mustOpen(b, d)
		defer conn.Close()

		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			pk := uint64(r.Intn(numRows))
			if err := conn.Update("bench", pk, []byte("updated")); err != nil {
				b.Fatalf("Update failed: %v", err)
			}
		}
	})
}

// Benchmark for Fetch operation
func benchmarkFetch(b *testing.B, d driver.Driver) {

	b.Cleanup(func() {
		d.Close()
	})

	requireFeature(b, d, driver.FeatureInsert|driver.FeatureFetch)

	// Prepare data
	const numRows = 1 << 14
	conn := mustOpen(b, d)
	defer conn.Close()
	for i := uint64(0); i < numRows; i++ {
		if err := conn.Insert("bench", i, []byte(fmt.Sprintf("value-%d", i))); err != nil {
			b.Fatalf("Insert failed: %v", err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		conn := mustOpen(b, d)
		defer conn.Close()

		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			pk := uint64(r.Intn(numRows))
			if _, loaded, err := conn.Fetch("bench", pk); err != nil || !loaded {
				b.Fatalf("Fetch failed (pk=%d, err=%v)", pk, err)
			}
		}
	})
}

// Benchmark for Fetch operation on missing rows
func benchmarkFetchMiss(b *testing.B, d driver.Driver) {

	b.Cleanup(func() {
		d.Close()
	})

	requireFeature(b, d, driver.FeatureFetch)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		conn := mustOpen(b, d)
		defer conn.Close()

		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			if _, loaded, err := conn.Fetch("bench", r.Uint64()); err != nil || loaded {
				b.Fatalf("Expected miss (err=%v)", err)
			}
		}
	})
}

// Benchmark for Delete operation
func benchmarkDelete(b *testing.B, d driver.Driver) {

	b.Cleanup(func() {
		d.Close()
	})

	requireFeature(b, d, driver.FeatureDelete)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		conn := mustOpen(b, d)
		defer conn.Close()

		counter := uint64(0)
		for pb.Next() {
			if err := conn.Delete("bench", counter); err != nil {
				b.Fatalf("Delete failed: %v", err)
			}
			counter++
		}
	})
}

// Benchmark for a small transaction (begin, two writes, commit)
func benchmarkTx(b *testing.B, d driver.Driver) {

	b.Cleanup(func() {
		d.Close()
	})

	requireFeature(b, d, driver.FeatureInsert|driver.FeatureTx)

	var counter atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		conn := mustOpen(b, d)
		defer conn.Close()

		for pb.Next() {
			pk := counter.Add(2)
			if err := conn.Begin(); err != nil {
				b.Fatalf("Begin failed: %v", err)
			}
			if err := conn.Insert("bench", pk, []byte("a")); err != nil {
				b.Fatalf("Insert failed: %v", err)
			}
			if err := conn.Insert("bench", pk+1, []byte("b")); err != nil {
				b.Fatalf("Insert failed: %v", err)
			}
			if err := conn.Commit(); err != nil {
				b.Fatalf("Commit failed: %v", err)
			}
		}
	})
}

// Benchmark for Save and Load operations
func benchmarkSaveLoad(b *testing.B, factory driver.DriverFactory) {

	d := factory()
	b.Cleanup(func() {
		d.Close()
	})

	requireFeature(b, d, driver.FeatureInsert|driver.FeatureSnapshot)

	// Prepare data
	const numRows = 1 << 16
	conn := mustOpen(b, d)
	defer conn.Close()
	for i := uint64(0); i < numRows; i++ {
		if err := conn.Insert("bench", i, []byte(fmt.Sprintf("value-%d", i))); err != nil {
			b.Fatalf("Insert failed: %v", err)
		}
	}

	var buf bytes.Buffer

	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := d.Save(&buf); err != nil {
				b.Fatalf("Save failed: %v", err)
			}
		}
	})

	snapshot := buf.Bytes()

	b.Run("Load", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			d2 := factory()
			if err := d2.Load(bytes.NewReader(snapshot)); err != nil {
				b.Fatalf("Load failed: %v", err)
			}
			d2.Close()
		}
	})
}

// Benchmark for a realistic mix of reads and writes
func benchmarkMixedUsage(b *testing.B, d driver.Driver) {

	b.Cleanup(func() {
		d.Close()
	})

	requireFeature(b, d, driver.FeatureInsert|driver.FeatureUpdate|driver.FeatureFetch|driver.FeatureDelete)

	// Prepare data
	const numRows = 1 << 14
	conn := mustOpen(b, d)
	defer conn.Close()
	for i := uint64(0); i < numRows; i++ {
		if err := conn.Insert("bench", i, []byte(fmt.Sprintf("value-%d", i))); err != nil {
			b.Fatalf("Insert failed: %v", err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		conn := mustOpen(b, d)
		defer conn.Close()

		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			pk := uint64(r.Intn(numRows))
			switch r.Intn(10) {
			case 0: // 10% updates
				_ = conn.Update("bench", pk, []byte("updated"))
			case 1: // 10% deletes followed by reinsert to keep the working set
				_ = conn.Delete("bench", pk)
				_ = conn.Insert("bench", pk, []byte("reinserted"))
			default: // 80% reads
				_, _, _ = conn.Fetch("bench", pk)
			}
		}
	})
}
