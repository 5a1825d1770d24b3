package store

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/minisnek/game"
	"github.com/brensch/minisnek/search"
)

func sampleState() *game.GameState {
	return &game.GameState{
		Width:  7,
		Height: 7,
		Turn:   9,
		YouId:  "me",
		Snakes: []game.Snake{
			{Id: "me", Health: 80, Body: []game.Point{{X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}}},
			{Id: "them", Health: 60, Body: []game.Point{{X: 0, Y: 3}, {X: 0, Y: 2}}},
		},
		Food: []game.Point{{X: 6, Y: 6}},
	}
}

func sampleRows(t *testing.T, gameID string, n int) []DecisionRow {
	t.Helper()
	state := sampleState()
	d := search.Decide(context.Background(), state, search.DefaultConfig(), rand.New(rand.NewSource(1)))
	rows := make([]DecisionRow, n)
	for i := range rows {
		rows[i] = NewDecisionRow(SourceSelfPlay, gameID, state, d)
		rows[i].Turn = int32(i)
	}
	return rows
}

func TestNewDecisionRow(t *testing.T) {
	state := sampleState()
	d := search.Decision{
		Move:     2,
		Fallback: search.FallbackRandom,
		Result:   search.Result{Score: math.Inf(-1), Depth: 3, Nodes: 42, Elapsed: 1500 * time.Microsecond},
	}
	row := NewDecisionRow(SourceServer, "g1", state, d)

	assert.Equal(t, "g1", row.GameID)
	assert.Equal(t, int32(9), row.Turn)
	assert.Equal(t, "me", row.SnakeID)
	assert.Equal(t, int32(80), row.Health)
	assert.Equal(t, int32(3), row.Length)
	assert.Equal(t, int32(2), row.Snakes)
	assert.Equal(t, "left", row.Move)
	assert.Equal(t, "random", row.Fallback)
	assert.True(t, math.IsInf(row.Score, -1))
	assert.Equal(t, int64(1500), row.ElapsedUs)

	decoded, err := DecodeState(row.State)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
}

func TestEncodeState_RejectsEmptyBoard(t *testing.T) {
	_, err := EncodeState(&game.GameState{})
	assert.ErrorIs(t, err, game.ErrInvalidState)
}

func TestWriteBatchParquetAtomic(t *testing.T) {
	dir := t.TempDir()
	rows := sampleRows(t, "g1", 5)
	rows[0].Score = math.Inf(1)
	rows[1].Actual = "down"

	path, err := WriteBatchParquetAtomic(dir, rows)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	tmp, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmp, "tmp dir should be empty after rename")

	got, err := ReadDecisions(path)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.True(t, math.IsInf(got[0].Score, 1))
	assert.Equal(t, "down", got[1].Actual)
	assert.Equal(t, "", got[2].Actual)
	for i := range rows {
		assert.Equal(t, rows[i].Turn, got[i].Turn)
		assert.Equal(t, rows[i].Move, got[i].Move)
		assert.Equal(t, rows[i].State, got[i].State)
	}
}

func TestBatchWriter(t *testing.T) {
	dir := t.TempDir()
	bw, err := NewBatchWriter(dir)
	require.NoError(t, err)

	require.NoError(t, bw.WriteGame(sampleRows(t, "a", 3)))
	require.NoError(t, bw.WriteGame(sampleRows(t, "b", 4)))
	require.NoError(t, bw.WriteGame(nil))
	assert.Equal(t, 7, bw.Rows())
	assert.Equal(t, 2, bw.Games())

	_, err = os.Stat(bw.OutPath())
	assert.True(t, os.IsNotExist(err), "file must not be visible before Finalize")

	path, err := bw.Finalize()
	require.NoError(t, err)
	assert.Equal(t, bw.OutPath(), path)

	all, err := ReadDecisionsDir(dir)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	assert.ErrorIs(t, bw.WriteGame(sampleRows(t, "c", 1)), ErrWriterClosed)
	path, err = bw.Finalize()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBatchWriter_EmptyBatchIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	bw, err := NewBatchWriter(dir)
	require.NoError(t, err)

	path, err := bw.Finalize()
	require.NoError(t, err)
	assert.Empty(t, path)

	matches, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRecorder_FlushesOnCountAndClose(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, 4, time.Hour, nil)

	rec.Record(sampleRows(t, "a", 3)...)
	rec.Record(sampleRows(t, "b", 3)...)
	rec.Record(sampleRows(t, "c", 1)...)
	rec.Record()
	rec.Close()
	rec.Close()

	assert.Len(t, rec.Files(), 2)
	all, err := ReadDecisionsDir(dir)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestWrittenLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "written.log")

	l, err := OpenWrittenLog(path)
	require.NoError(t, err)
	assert.Zero(t, l.Count())

	require.NoError(t, l.AddMany("g1", "", "g2", "g1"))
	require.NoError(t, l.AddMany("g2"))
	assert.True(t, l.Has("g1"))
	assert.False(t, l.Has("g3"))
	assert.Equal(t, map[string]bool{"g1": true, "g2": true}, l.Snapshot())
	require.NoError(t, l.Close())
	assert.Error(t, l.AddMany("g3"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "g1\ng2\n", string(raw))

	reopened, err := OpenWrittenLog(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 2, reopened.Count())
	assert.True(t, reopened.Has("g2"))

	_, err = OpenWrittenLog("")
	assert.Error(t, err)
}
