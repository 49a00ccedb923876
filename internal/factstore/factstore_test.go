package factstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocatio/internal/errors"
	"vocatio/internal/types"
)

func candidate() *types.CandidateRecord {
	return &types.CandidateRecord{
		PersonalInfo: types.PersonalInfo{Name: "Jane Doe"},
		Experiences: []types.Experience{
			{Company: "Acme", Title: "Engineer", StartDate: "2020-01", EndDate: types.StringPtr("2021-01"), Description: "Built X"},
		},
		Skills: []string{"JavaScript", "React"},
	}
}

func job() *types.JobRecord {
	return &types.JobRecord{
		CompanyName:  "Globex",
		JobTitle:     "Frontend Engineer",
		Skills:       []string{"javascript", "Node.js"},
		Requirements: []string{"javascript"},
	}
}

func TestNewSessionSnapshotsRecords(t *testing.T) {
	c, j := candidate(), job()
	session, err := NewSession(c, j)
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID())
	assert.Empty(t, c.ID, "caller's record is not modified")

	c.Skills[0] = "Kubernetes"
	c.Experiences[0].Company = "Other"
	j.Requirements[0] = "rust"

	stored := session.Candidate()
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, "JavaScript", stored.Skills[0])
	assert.Equal(t, "Acme", stored.Experiences[0].Company)
	assert.Equal(t, "javascript", session.Job().Requirements[0])

	stored.Skills[0] = "mutated"
	assert.Equal(t, "JavaScript", session.Candidate().Skills[0])
}

func TestNewSessionKeepsExistingIDs(t *testing.T) {
	c := candidate()
	c.ID = "cand-42"
	session, err := NewSession(c, job())
	require.NoError(t, err)
	assert.Equal(t, "cand-42", session.Candidate().ID)
}

func TestNewSessionRejectsEmptyInput(t *testing.T) {
	_, err := NewSession(&types.CandidateRecord{}, job())
	assert.Equal(t, errors.ReasonEmptyInput, errors.ReasonOf(err))

	_, err = NewSession(candidate(), &types.JobRecord{JobTitle: "x"})
	assert.Equal(t, errors.ReasonEmptyInput, errors.ReasonOf(err))
}

func TestSessionReport(t *testing.T) {
	session, err := NewSession(candidate(), job())
	require.NoError(t, err)

	report, err := session.Report(nil)
	require.NoError(t, err)
	assert.Equal(t, 100, report.MatchingScore)
	assert.Contains(t, report.Matches, types.SkillMatch{Skill: "Node.js", InJob: true})
}

func TestSessionCommitAndReset(t *testing.T) {
	session, err := NewSession(candidate(), job())
	require.NoError(t, err)
	assert.Nil(t, session.Optimized())

	src := session.Candidate()
	err = session.Commit(&types.OptimizedCandidateRecord{ID: "opt-1", SourceID: "someone-else", Record: *src})
	assert.Error(t, err)
	assert.Nil(t, session.Optimized())

	require.NoError(t, session.Commit(&types.OptimizedCandidateRecord{ID: "opt-1", SourceID: src.ID, Version: 1, Record: *src}))
	opt := session.Optimized()
	require.NotNil(t, opt)
	assert.Equal(t, 1, opt.Version)

	// the source record is untouched by the optimized slot
	opt.Record.Skills[0] = "mutated"
	assert.Equal(t, "JavaScript", session.Candidate().Skills[0])
	assert.Equal(t, "JavaScript", session.Optimized().Record.Skills[0])

	session.Reset()
	assert.Nil(t, session.Candidate())
	assert.Nil(t, session.Job())
	assert.Nil(t, session.Optimized())
	_, err = session.Report(nil)
	assert.Equal(t, errors.ReasonEmptyInput, errors.ReasonOf(err))
}

func TestStoreLifecycle(t *testing.T) {
	store := NewStore(0, 0, nil)
	defer store.Close()

	session, err := store.Create(candidate(), job())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Get(session.ID())
	require.True(t, ok)
	assert.Same(t, session, got)

	assert.True(t, store.Delete(session.ID()))
	assert.False(t, store.Delete(session.ID()))
	assert.Nil(t, session.Candidate(), "deleted sessions are reset")
	_, ok = store.Get(session.ID())
	assert.False(t, ok)
}

func TestStoreEvictsIdleSessions(t *testing.T) {
	store := NewStore(time.Minute, time.Hour, nil)
	defer store.Close()

	stale, err := store.Create(candidate(), job())
	require.NoError(t, err)
	fresh, err := store.Create(candidate(), job())
	require.NoError(t, err)

	stale.touch(time.Now().Add(-2 * time.Minute))

	assert.Equal(t, 1, store.evictIdle(time.Now()))
	_, ok := store.Get(stale.ID())
	assert.False(t, ok)
	_, ok = store.Get(fresh.ID())
	assert.True(t, ok)
	assert.Equal(t, 1, store.GetStats()["active_sessions"])
}

func optimized(id, source string, version int) *types.OptimizedCandidateRecord {
	return &types.OptimizedCandidateRecord{
		ID:         id,
		SourceID:   source,
		JobID:      "job-1",
		Version:    version,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Record:     *candidate(),
		Attempts:   2,
		TokenUsage: &types.TokenUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
		Metrics:    &types.OptimizationMetrics{
			Before:        &types.MatchingReport{MatchingScore: 50, Matches: []types.SkillMatch{{Skill: "Go", InJob: true, Relevant: true}}, AnalysisText: "before"},
			After:         &types.MatchingReport{MatchingScore: 100, Matches: []types.SkillMatch{{Skill: "Go", InCV: true, InJob: true, Relevant: true}}, AnalysisText: "after"},
			ScoreDelta:    50,
			Keywords:      types.KeywordCoverage{Total: 1, After: 1, Gained: []string{"Go"}},
			Modifications: types.ModificationStats{
				ModifiedBlocks:   1,
				TotalBlocks:      2,
				ModificationRate: 0.5,
				OriginalChars:    7,
				OptimizedChars:   12,
				ChangePercentage: 71.43,
				Changes:          []types.SectionChange{{Field: "experiences[0].description", OriginalChars: 7, OptimizedChars: 12}},
			},
		},
	}
}

func archives(t *testing.T) map[string]Archive {
	t.Helper()
	sqlite, err := OpenArchive(DriverSQLite, filepath.Join(t.TempDir(), "archive.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	memory, err := OpenArchive(DriverMemory, "", nil)
	require.NoError(t, err)

	return map[string]Archive{DriverSQLite: sqlite, DriverMemory: memory}
}

func TestArchives(t *testing.T) {
	for name, archive := range archives(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			v, err := archive.NextVersion(ctx, "src-1")
			require.NoError(t, err)
			assert.Equal(t, 1, v)

			first := optimized("opt-1", "src-1", 0)
			require.NoError(t, archive.Save(ctx, first))
			assert.Equal(t, 1, first.Version)

			// a stale version is replaced by the next free one
			second := optimized("opt-2", "src-1", 1)
			require.NoError(t, archive.Save(ctx, second))
			assert.Equal(t, 2, second.Version)

			other := optimized("opt-3", "src-2", 0)
			require.NoError(t, archive.Save(ctx, other))
			assert.Equal(t, 1, other.Version)

			assert.Error(t, archive.Save(ctx, optimized("opt-1", "src-1", 0)), "duplicate id")

			v, err = archive.NextVersion(ctx, "src-1")
			require.NoError(t, err)
			assert.Equal(t, 3, v)

			got, err := archive.Get(ctx, "opt-1")
			require.NoError(t, err)
			assert.Equal(t, optimized("opt-1", "src-1", 1), got)

			list, err := archive.ListBySource(ctx, "src-1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, 1, list[0].Version)
			assert.Equal(t, 2, list[1].Version)

			_, err = archive.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestArchiveSaveAssignsUniqueVersionsConcurrently(t *testing.T) {
	const writers = 8
	for name, archive := range archives(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- archive.Save(ctx, optimized(fmt.Sprintf("opt-%d", i), "src-1", 1))
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			list, err := archive.ListBySource(ctx, "src-1")
			require.NoError(t, err)
			require.Len(t, list, writers)
			for i, record := range list {
				assert.Equal(t, i+1, record.Version)
			}
		})
	}
}

func TestSessionBeginOptimize(t *testing.T) {
	session, err := NewSession(candidate(), job())
	require.NoError(t, err)

	release, err := session.BeginOptimize()
	require.NoError(t, err)

	_, err = session.BeginOptimize()
	assert.True(t, errors.HasCode(err, errors.ErrCodeInProgress))

	release()
	release()

	again, err := session.BeginOptimize()
	require.NoError(t, err)
	again()
}

func TestOpenArchiveRejectsUnknownDriver(t *testing.T) {
	_, err := OpenArchive("postgres", "", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))

	_, err = OpenArchive(DriverSQLite, "", nil)
	assert.Error(t, err)
}

func TestLoadRecords(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "cv.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
personalInfo:
  name: Jane Doe
experiences:
  - company: Acme
    title: Engineer
    startDate: "2020-01"
    endDate: null
    description: Built X
skills: [Go, Docker]
`), 0o600))

	c, err := LoadCandidate(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Experiences[0].Company)
	assert.Equal(t, "2020-01", c.Experiences[0].StartDate)
	assert.Nil(t, c.Experiences[0].EndDate)
	assert.Equal(t, []string{"Go", "Docker"}, c.Skills)

	jsonPath := filepath.Join(dir, "job.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"companyName":"Globex","jobTitle":"SRE","skills":["Go"],"requirements":["Kubernetes"]}`), 0o600))
	j, err := LoadJob(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kubernetes"}, j.Requirements)

	_, err = LoadJob(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))

	badPath := filepath.Join(dir, "job.txt")
	require.NoError(t, os.WriteFile(badPath, []byte("x"), 0o600))
	_, err = LoadJob(badPath)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidFormat))

	brokenPath := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(brokenPath, []byte("{"), 0o600))
	_, err = LoadCandidate(brokenPath)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidFormat))
}
