package ledger

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "docdesk-ledger-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	require.NoError(t, db.conn.QueryRow(`SELECT count(*) FROM uploads`).Scan(&count))
	assert.Zero(t, count)
}

func TestRecordAndHas(t *testing.T) {
	db := testDB(t)

	ok, err := db.Has("abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Record(Entry{Checksum: "abc", Path: "drop/a.pdf", DocID: "A"}))

	ok, err = db.Has("abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecordUpsert(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.Record(Entry{Checksum: "x", Path: "old.pdf", DocID: "A"}))
	require.NoError(t, db.Record(Entry{Checksum: "x", Path: "new.pdf", DocID: "A"}))

	entries, err := db.List("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new.pdf", entries[0].Path)
}

func TestListFilterAndOrder(t *testing.T) {
	db := testDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Record(Entry{Checksum: "1", Path: "a1.pdf", DocID: "A", UploadedAt: base}))
	require.NoError(t, db.Record(Entry{Checksum: "2", Path: "b1.pdf", DocID: "B", UploadedAt: base.Add(time.Hour)}))
	require.NoError(t, db.Record(Entry{Checksum: "3", Path: "a2.pdf", DocID: "A", UploadedAt: base.Add(2 * time.Hour)}))

	all, err := db.List("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a2.pdf", all[0].Path)

	onlyA, err := db.List("A")
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, "A", onlyA[1].DocID)
	assert.True(t, onlyA[1].UploadedAt.Equal(base))
}
