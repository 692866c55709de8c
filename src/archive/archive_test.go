package archive

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QianXiquq/RankingAnalyzer/src/records"
)

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(context.Background(), filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func sampleDataset() records.Dataset {
	return records.Dataset{HasRank: true, Records: []records.ExamRecord{
		{Row: 1, Exam: records.DateExam(2024, time.January, 1), Subject: "math", Score: 90, TotalRank: 5},
		{Row: 2, Exam: records.DateExam(2024, time.January, 1), Subject: "eng", Score: math.NaN(), TotalRank: math.NaN()},
		{Row: 3, Exam: records.ParseExam("Midterm"), Subject: "math", Score: 95.5, TotalRank: 3},
	}}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	snap, err := a.SaveSnapshot(ctx, "term1", sampleDataset())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 3, snap.Records)

	for _, key := range []string{snap.ID, "term1"} {
		ds, got, err := a.LoadSnapshot(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, snap.ID, got.ID)
		require.Equal(t, 3, ds.Len())
		assert.True(t, ds.HasRank)
		r := ds.Records[0]
		assert.Equal(t, "2024-01-01", r.Exam.Label())
		assert.True(t, r.Exam.IsDate())
		assert.Equal(t, 90.0, r.Score)
		assert.Equal(t, 5.0, r.TotalRank)
		assert.False(t, ds.Records[1].HasScore())
		assert.False(t, ds.Records[1].HasRank())
		assert.Equal(t, "Midterm", ds.Records[2].Exam.Label())
		assert.Equal(t, 3, ds.Records[2].Row)
	}
}

func TestLoadByNamePicksNewest(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	_, err := a.SaveSnapshot(ctx, "dup", sampleDataset())
	require.NoError(t, err)
	small := records.Dataset{Records: []records.ExamRecord{records.NewRecord("E1", "bio", 70, math.NaN())}}
	time.Sleep(2 * time.Millisecond)
	second, err := a.SaveSnapshot(ctx, "dup", small)
	require.NoError(t, err)

	ds, got, err := a.LoadSnapshot(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 1, ds.Len())
	assert.False(t, ds.HasRank)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	s1, err := a.SaveSnapshot(ctx, "", sampleDataset())
	require.NoError(t, err)
	assert.NotEmpty(t, s1.Name)

	list, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, s1.ID, list[0].ID)

	require.NoError(t, a.Delete(ctx, s1.ID))
	list, err = a.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.True(t, errors.Is(a.Delete(ctx, s1.ID), ErrSnapshotNotFound))
	_, _, err = a.LoadSnapshot(ctx, s1.ID)
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))
}

func TestSaveEmptyRejected(t *testing.T) {
	a := openTemp(t)
	_, err := a.SaveSnapshot(context.Background(), "x", records.Dataset{})
	assert.True(t, errors.Is(err, records.ErrEmptyData))
}
