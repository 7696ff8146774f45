package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachscan/pkg/config"
	"github.com/reachscan/pkg/model"
)

func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewRepositories(context.Background(), &config.DatabaseConfig{
		Enabled: true,
		Type:    "sqlite",
		Path:    filepath.Join(t.TempDir(), "checks.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func sampleReport(id string, startedAt time.Time, reachable bool) *model.Report {
	r := model.NewReport(id, &model.CheckRequest{
		Dump:        "dumps/app.hprof",
		TargetClass: "com.example.Session",
		Expect:      model.ExpectUnreachable,
	}, startedAt)
	r.Dump.Classes = 12
	r.Dump.Objects = 340
	r.AddRoot(model.RootResult{Root: "0x1000", RootClass: "com.example.Cache", Reachable: reachable, Visited: 5, Tested: 7})
	r.Phases = []model.PhaseTiming{{Name: "load_dump", DurationMs: 12.5}}
	r.DurationMs = 20
	r.Finalize()
	return r
}

func TestGormCheckRepository_SaveAndGet(t *testing.T) {
	repo := setupTestRepos(t).Checks
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	report := sampleReport("check-1", start, true)
	require.NoError(t, repo.Save(ctx, report))

	got, err := repo.Get(ctx, "check-1")
	require.NoError(t, err)
	assert.Equal(t, "check-1", got.CheckID)
	assert.Equal(t, model.VerdictFail, got.Verdict)
	assert.True(t, got.Reachable)
	assert.Equal(t, report.Roots, got.Roots)
	assert.Equal(t, report.Phases, got.Phases)
	assert.Equal(t, 340, got.Dump.Objects)
	assert.True(t, start.Equal(got.StartedAt))

	t.Run("duplicate", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, report))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGormCheckRepository_List(t *testing.T) {
	repo := setupTestRepos(t).Checks
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	empty, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, sampleReport(id, start.Add(time.Duration(i)*time.Minute), i%2 == 0)))
	}

	reports, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "c", reports[0].CheckID)
	assert.Equal(t, "b", reports[1].CheckID)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCheckRecord_ToModelWithoutReport(t *testing.T) {
	rec := &CheckRecord{
		CheckID:     "legacy",
		Dump:        "old.hprof",
		TargetClass: "com.example.Session",
		Expect:      "reachable",
		Reachable:   true,
		Verdict:     "PASS",
	}
	r, err := rec.ToModel()
	require.NoError(t, err)
	assert.Equal(t, "old.hprof", r.Dump.Location)
	assert.Equal(t, model.ExpectReachable, r.Expect)
	assert.Equal(t, model.VerdictPass, r.Verdict)

	rec.Report = JSONField("{not json")
	_, err = rec.ToModel()
	assert.Error(t, err)
}

func TestJSONField_Scan(t *testing.T) {
	var j JSONField
	require.NoError(t, j.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, `{"a":1}`, string(j))
	require.NoError(t, j.Scan(`{"b":2}`))
	assert.Equal(t, `{"b":2}`, string(j))
	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)
	assert.Error(t, j.Scan(42))

	v, err := JSONField(`{}`).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
	v, err = JSONField(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
