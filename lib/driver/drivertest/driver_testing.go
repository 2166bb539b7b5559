package drivertest

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/syndb/syndb/lib/driver"
)

// RunDriverTests runs a comprehensive conformance test suite against a
// driver.Driver implementation.
func RunDriverTests(t *testing.T, name string, factory driver.DriverFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Fetch", func(t *testing.T) {
			testInsertFetch(t, factory())
		})

		t.Run("InsertConflict", func(t *testing.T) {
			testInsertConflict(t, factory())
		})

		t.Run("InsertIfAbsent", func(t *testing.T) {
			testInsertIfAbsent(t, factory())
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, factory())
		})

		t.Run("TxCommit", func(t *testing.T) {
			testTxCommit(t, factory())
		})

		t.Run("TxRollback", func(t *testing.T) {
			testTxRollback(t, factory())
		})

		t.Run("TxValidation", func(t *testing.T) {
			testTxValidation(t, factory())
		})

		t.Run("Versioning", func(t *testing.T) {
			testVersioning(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("ConcurrentWriters", func(t *testing.T) {
			testConcurrentWriters(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the driver supports the specified feature.
// Skips the test if it is not supported.
func requireFeature(t testing.TB, d driver.Driver, feature driver.Feature) {
	if !d.SupportsFeature(feature) {
		t.Skip()
	}
}

// mustOpen opens a connection or fails the test
func mustOpen(t testing.TB, d driver.Driver) driver.Conn {
	conn, err := d.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return conn
}

// retCode extracts the driver return code from an error (or RetCSuccess)
func retCode(err error) driver.RetCode {
	if err == nil {
		return driver.RetCSuccess
	}
	if dErr, ok := err.(*driver.Error); ok {
		return dErr.Code
	}
	return driver.RetCInternalError
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertFetch(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert|driver.FeatureFetch)

	conn := mustOpen(t, d)
	defer conn.Close()

	testData := []byte("test-payload")

	if err := conn.Insert("users", 1, testData); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	row, loaded, err := conn.Fetch("users", 1)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !loaded {
		t.Errorf("Expected row 1 to exist after Insert")
	}
	if !bytes.Equal(row.Data, testData) {
		t.Errorf("Expected data %s, got %s", testData, row.Data)
	}
	if row.PK != 1 {
		t.Errorf("Expected PK 1, got %d", row.PK)
	}

	_, loaded, err = conn.Fetch("users", 42)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if loaded {
		t.Errorf("Expected nonexistent row to return loaded=false")
	}

	// rows of other tables must not be visible
	_, loaded, err = conn.Fetch("orders", 1)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if loaded {
		t.Errorf("Expected row to be scoped to its table")
	}

	// returned data must be a copy
	row.Data[0] = 'X'
	row2, _, _ := conn.Fetch("users", 1)
	if !bytes.Equal(row2.Data, testData) {
		t.Errorf("Stored data was corrupted by modifying a fetched copy")
	}
}

func testInsertConflict(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert)

	conn := mustOpen(t, d)
	defer conn.Close()

	if err := conn.Insert("users", 1, []byte("a")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := conn.Insert("users", 1, []byte("b"))
	if retCode(err) != driver.RetCConflict {
		t.Errorf("Expected RetCConflict for duplicate insert, got %v", err)
	}

	// the original row must be untouched
	row, loaded, _ := conn.Fetch("users", 1)
	if !loaded || !bytes.Equal(row.Data, []byte("a")) {
		t.Errorf("Original row was modified by failed insert")
	}
}

func testInsertIfAbsent(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsertIfAbsent)

	conn := mustOpen(t, d)
	defer conn.Close()

	inserted, err := conn.InsertIfAbsent("locks", 7, []byte("owner-1"))
	if err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if !inserted {
		t.Errorf("Expected first InsertIfAbsent to insert")
	}

	inserted, err = conn.InsertIfAbsent("locks", 7, []byte("owner-2"))
	if err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if inserted {
		t.Errorf("Expected second InsertIfAbsent to be a no-op")
	}

	row, _, _ := conn.Fetch("locks", 7)
	if !bytes.Equal(row.Data, []byte("owner-1")) {
		t.Errorf("Expected original data to survive, got %s", row.Data)
	}
}

func testUpdate(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert|driver.FeatureUpdate)

	conn := mustOpen(t, d)
	defer conn.Close()

	if err := conn.Insert("users", 1, []byte("v1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := conn.Update("users", 1, []byte("v2")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	row, _, _ := conn.Fetch("users", 1)
	if !bytes.Equal(row.Data, []byte("v2")) {
		t.Errorf("Expected updated data v2, got %s", row.Data)
	}

	err := conn.Update("users", 99, []byte("v3"))
	if retCode(err) != driver.RetCNotFound {
		t.Errorf("Expected RetCNotFound for update of missing row, got %v", err)
	}
}

func testDelete(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert|driver.FeatureDelete)

	conn := mustOpen(t, d)
	defer conn.Close()

	if err := conn.Insert("users", 1, []byte("v1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := conn.Delete("users", 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, loaded, _ := conn.Fetch("users", 1)
	if loaded {
		t.Errorf("Expected row to be gone after Delete")
	}

	// deleting a missing row is not an error
	if err := conn.Delete("users", 1); err != nil {
		t.Errorf("Expected delete of missing row to succeed, got %v", err)
	}
}

func testScan(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert|driver.FeatureScan)

	conn := mustOpen(t, d)
	defer conn.Close()

	const numRows = 100
	for i := uint64(0); i < numRows; i++ {
		if err := conn.Insert("users", i, []byte(fmt.Sprintf("row-%d", i))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	// a row in another table must not show up
	if err := conn.Insert("orders", 1, []byte("other")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	seen := make(map[uint64][]byte)
	err := conn.Scan("users", func(row driver.Row) bool {
		seen[row.PK] = row.Data
		return true
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(seen) != numRows {
		t.Errorf("Expected %d rows, got %d", numRows, len(seen))
	}
	for i := uint64(0); i < numRows; i++ {
		if !bytes.Equal(seen[i], []byte(fmt.Sprintf("row-%d", i))) {
			t.Errorf("Row %d missing or wrong: %s", i, seen[i])
		}
	}

	// early termination
	count := 0
	err = conn.Scan("users", func(row driver.Row) bool {
		count++
		return count < 10
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if count != 10 {
		t.Errorf("Expected scan to stop after 10 rows, saw %d", count)
	}
}

func testTxCommit(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert|driver.FeatureTx)

	conn := mustOpen(t, d)
	defer conn.Close()

	if err := conn.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if err := conn.Insert("users", 1, []byte("a")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := conn.Insert("users", 2, []byte("b")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// buffered writes must not be visible before commit
	if _, loaded, _ := conn.Fetch("users", 1); loaded {
		t.Errorf("Expected buffered insert to be invisible before Commit")
	}

	if err := conn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	row1, loaded1, _ := conn.Fetch("users", 1)
	row2, loaded2, _ := conn.Fetch("users", 2)
	if !loaded1 || !loaded2 {
		t.Fatalf("Expected both rows after Commit")
	}

	// all rows of one transaction share one commit version
	if row1.Version != row2.Version {
		t.Errorf("Expected equal commit versions, got %d and %d", row1.Version, row2.Version)
	}
}

func testTxRollback(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert|driver.FeatureTx)

	conn := mustOpen(t, d)
	defer conn.Close()

	if err := conn.Insert("users", 1, []byte("committed")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := conn.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := conn.Update("users", 1, []byte("uncommitted")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := conn.Insert("users", 2, []byte("uncommitted")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := conn.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	row, loaded, _ := conn.Fetch("users", 1)
	if !loaded || !bytes.Equal(row.Data, []byte("committed")) {
		t.Errorf("Expected row 1 to keep committed data, got %s", row.Data)
	}
	if _, loaded, _ := conn.Fetch("users", 2); loaded {
		t.Errorf("Expected rolled-back insert to be gone")
	}
}

func testTxValidation(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert|driver.FeatureTx)

	conn := mustOpen(t, d)
	defer conn.Close()

	if err := conn.Insert("users", 1, []byte("existing")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// a conflicting insert must abort the whole commit
	if err := conn.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := conn.Insert("users", 2, []byte("new")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := conn.Insert("users", 1, []byte("conflict")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := conn.Commit()
	if retCode(err) != driver.RetCConflict {
		t.Errorf("Expected RetCConflict from Commit, got %v", err)
	}

	// nothing of the aborted transaction may be applied
	if _, loaded, _ := conn.Fetch("users", 2); loaded {
		t.Errorf("Expected aborted commit to apply nothing")
	}

	// delete-then-insert of one key inside a transaction must validate
	if err := conn.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := conn.Delete("users", 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := conn.Insert("users", 1, []byte("reinserted")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := conn.Commit(); err != nil {
		t.Fatalf("Expected delete-then-insert commit to succeed, got %v", err)
	}

	row, _, _ := conn.Fetch("users", 1)
	if !bytes.Equal(row.Data, []byte("reinserted")) {
		t.Errorf("Expected reinserted data, got %s", row.Data)
	}
}

func testVersioning(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert|driver.FeatureUpdate)

	conn := mustOpen(t, d)
	defer conn.Close()

	if err := conn.Insert("users", 1, []byte("v1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	row1, _, _ := conn.Fetch("users", 1)

	if err := conn.Update("users", 1, []byte("v2")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	row2, _, _ := conn.Fetch("users", 1)

	if row2.Version <= row1.Version {
		t.Errorf("Expected version to increase on update: %d -> %d", row1.Version, row2.Version)
	}
}

func testSaveLoad(t *testing.T, factory driver.DriverFactory) {
	d1 := factory()
	defer d1.Close()

	requireFeature(t, d1, driver.FeatureInsert|driver.FeatureSnapshot)

	conn1 := mustOpen(t, d1)
	defer conn1.Close()

	const numRows = 500
	for i := uint64(0); i < numRows; i++ {
		if err := conn1.Insert("users", i, []byte(fmt.Sprintf("row-%d", i))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := conn1.Insert("orders", 1, []byte("order")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var buf bytes.Buffer
	if err := d1.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	d2 := factory()
	defer d2.Close()
	if err := d2.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	conn2 := mustOpen(t, d2)
	defer conn2.Close()

	for i := uint64(0); i < numRows; i++ {
		row, loaded, err := conn2.Fetch("users", i)
		if err != nil || !loaded {
			t.Fatalf("Expected row %d after Load (err=%v)", i, err)
		}
		if !bytes.Equal(row.Data, []byte(fmt.Sprintf("row-%d", i))) {
			t.Errorf("Row %d has wrong data after Load: %s", i, row.Data)
		}
	}
	if _, loaded, _ := conn2.Fetch("orders", 1); !loaded {
		t.Errorf("Expected second table to survive Save/Load")
	}

	// versions assigned after Load must not collide with loaded ones
	if err := conn2.Insert("users", numRows, []byte("fresh")); err != nil {
		t.Fatalf("Insert after Load failed: %v", err)
	}
	freshRow, _, _ := conn2.Fetch("users", numRows)
	oldRow, _, _ := conn2.Fetch("users", 0)
	if freshRow.Version <= oldRow.Version {
		t.Errorf("Expected fresh version to exceed loaded versions")
	}
}

func testConcurrentWriters(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert)

	const (
		numWriters     = 8
		rowsPerWriter  = 200
		tableName      = "concurrent"
	)

	var wg sync.WaitGroup
	wg.Add(numWriters)

	for w := 0; w < numWriters; w++ {
		go func(w int) {
			defer wg.Done()

			conn, err := d.Open()
			if err != nil {
				t.Errorf("Open failed: %v", err)
				return
			}
			defer conn.Close()

			for i := 0; i < rowsPerWriter; i++ {
				pk := uint64(w*rowsPerWriter + i)
				if err := conn.Insert(tableName, pk, []byte(fmt.Sprintf("w%d-%d", w, i))); err != nil {
					t.Errorf("Insert failed: %v", err)
					return
				}
			}
		}(w)
	}

	wg.Wait()

	conn := mustOpen(t, d)
	defer conn.Close()

	count := 0
	if err := conn.Scan(tableName, func(driver.Row) bool {
		count++
		return true
	}); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if count != numWriters*rowsPerWriter {
		t.Errorf("Expected %d rows, got %d", numWriters*rowsPerWriter, count)
	}
}

func testEdgeCases(t *testing.T, d driver.Driver) {
	defer d.Close()

	requireFeature(t, d, driver.FeatureInsert|driver.FeatureTx)

	conn := mustOpen(t, d)

	// empty payload is a valid row
	if err := conn.Insert("users", 1, nil); err != nil {
		t.Fatalf("Insert of empty payload failed: %v", err)
	}
	row, loaded, _ := conn.Fetch("users", 1)
	if !loaded || len(row.Data) != 0 {
		t.Errorf("Expected empty payload row to exist")
	}

	// pk 0 is a valid primary key
	if err := conn.Insert("users", 0, []byte("zero")); err != nil {
		t.Fatalf("Insert of pk 0 failed: %v", err)
	}

	// transaction state errors
	if err := conn.Commit(); retCode(err) != driver.RetCInvalidOperation {
		t.Errorf("Expected RetCInvalidOperation for Commit without Begin, got %v", err)
	}
	if err := conn.Rollback(); retCode(err) != driver.RetCInvalidOperation {
		t.Errorf("Expected RetCInvalidOperation for Rollback without Begin, got %v", err)
	}
	if err := conn.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := conn.Begin(); retCode(err) != driver.RetCInvalidOperation {
		t.Errorf("Expected RetCInvalidOperation for nested Begin, got %v", err)
	}
	if err := conn.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	// operations on a closed connection must fail
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := conn.Insert("users", 2, []byte("late")); err == nil {
		t.Errorf("Expected insert on closed connection to fail")
	}
}
