package memtable

import (
	"testing"

	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/lib/driver/drivertest"
)

func Test(t *testing.T) {
	drivertest.RunDriverTests(t, "Memtable", func() driver.Driver {
		return NewMemtableDB(nil)
	})
}

func Benchmark(b *testing.B) {
	drivertest.RunDriverBenchmarks(b, "Memtable", func() driver.Driver {
		return NewMemtableDB(nil)
	})
}
