package output

import (
	"bytes"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV_HeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	c := NewCSV(&buf)
	require.NoError(t, c.WriteHeader(3))
	require.NoError(t, c.WriteRecord(Record{Seq: 0, Counts: []uint32{0, 12, 3}}))
	require.NoError(t, c.WriteRecord(Record{Seq: 1, Counts: []uint32{4294967295, 0, 1}}))
	require.NoError(t, c.Close())

	assert.Equal(t, "Area,Area,Area\n0,12,3\n4294967295,0,1\n", buf.String())
}

func TestCSV_ZeroRegions(t *testing.T) {
	var buf bytes.Buffer
	c := NewCSV(&buf)
	require.NoError(t, c.WriteHeader(0))
	require.NoError(t, c.WriteRecord(Record{}))
	require.NoError(t, c.Close())
	assert.Equal(t, "\n\n", buf.String())
}

func TestCreateCSV_TruncatesAndCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("stale contents from an earlier run\n"), 0o644))

	c, err := CreateCSV(path)
	require.NoError(t, err)
	require.NoError(t, c.WriteHeader(1))
	require.NoError(t, c.WriteRecord(Record{Counts: []uint32{7}}))
	require.NoError(t, c.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Area\n7\n", string(raw))
}

func TestCreateCSV_BadPath(t *testing.T) {
	_, err := CreateCSV(filepath.Join(t.TempDir(), "missing", "Area.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

type failingSink struct {
	err    error
	closed bool
}

func (f *failingSink) WriteHeader(int) error    { return f.err }
func (f *failingSink) WriteRecord(Record) error { return f.err }
func (f *failingSink) Close() error             { f.closed = true; return f.err }

func TestMulti_StopsAtFirstErrorAndClosesAll(t *testing.T) {
	boom := errors.New("boom")
	var buf bytes.Buffer
	bad := &failingSink{err: boom}
	m := Multi{bad, NewCSV(&buf)}

	require.ErrorIs(t, m.WriteHeader(1), boom)
	require.ErrorIs(t, m.Close(), boom)
	assert.True(t, bad.closed)
	assert.Empty(t, buf.String())
}

func TestSQLite_RecordsRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := OpenSQLite(path, "run-1")
	require.NoError(t, err)
	require.NoError(t, s.WriteHeader(2))
	require.NoError(t, s.WriteRecord(Record{Seq: 0, Prev: "a.tif", Cur: "b.tif", Counts: []uint32{5, 6}}))
	require.NoError(t, s.WriteRecord(Record{Seq: 1, Prev: "b.tif", Cur: "c.tif", Counts: []uint32{0, 9}}))
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var regions int
	require.NoError(t, db.QueryRow(`SELECT regions FROM runs WHERE id = ?`, "run-1").Scan(&regions))
	assert.Equal(t, 2, regions)

	var total, rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), SUM(count) FROM measurements WHERE run_id = ?`, "run-1").Scan(&rows, &total))
	assert.Equal(t, 4, rows)
	assert.Equal(t, 20, total)

	var cur string
	require.NoError(t, db.QueryRow(`SELECT cur FROM measurements WHERE run_id = ? AND seq = 1 AND roi = 1`, "run-1").Scan(&cur))
	assert.Equal(t, "c.tif", cur)
}

func TestSQLite_RecordBeforeHeader(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.db"), "run-2")
	require.NoError(t, err)
	defer s.Close()
	require.Error(t, s.WriteRecord(Record{Counts: []uint32{1}}))
}
