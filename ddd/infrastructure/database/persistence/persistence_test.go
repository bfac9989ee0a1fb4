package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/database/persistence"
	"transcode-orchestrator/internal/testutil"
)

const videoUUID = "0e5f7a3b-2c1d-4f8e-9a6b-5c4d3e2f1a0b"

func TestJobInfo_DecreaseNeverGoesNegative(t *testing.T) {
	infos := persistence.NewJobInfoRepository(testutil.NewDB(t))
	ctx := context.Background()

	info, err := infos.Get(ctx, videoUUID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.PendingTranscode)

	_, err = infos.Decrease(ctx, videoUUID, vo.CounterPendingTranscode)
	assert.ErrorIs(t, err, entity.ErrCounterUnderflow)

	n, err := infos.Increase(ctx, videoUUID, vo.CounterPendingTranscode)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = infos.Increase(ctx, videoUUID, vo.CounterPendingMove)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = infos.Decrease(ctx, videoUUID, vo.CounterPendingTranscode)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = infos.Decrease(ctx, videoUUID, vo.CounterPendingTranscode)
	assert.ErrorIs(t, err, entity.ErrCounterUnderflow)

	info, err = infos.Get(ctx, videoUUID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.PendingTranscode)
	assert.Equal(t, 1, info.PendingMove)

	_, err = infos.Increase(ctx, videoUUID, vo.CounterNone)
	assert.Error(t, err)
}

func TestJobInfo_ConcurrentIncrease(t *testing.T) {
	infos := persistence.NewJobInfoRepository(testutil.NewDB(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := infos.Increase(ctx, videoUUID, vo.CounterPendingTranscode)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	info, err := infos.Get(ctx, videoUUID)
	require.NoError(t, err)
	assert.Equal(t, 10, info.PendingTranscode)
}

func TestJobInfo_ConcurrentDecreaseReportsEachValueOnce(t *testing.T) {
	infos := persistence.NewJobInfoRepository(testutil.NewDB(t))
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := infos.Increase(ctx, videoUUID, vo.CounterPendingTranscode)
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		wg   sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := infos.Decrease(ctx, videoUUID, vo.CounterPendingTranscode)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[n]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, 10)
	for n := 0; n < 10; n++ {
		assert.Equal(t, 1, seen[n], "remaining %d", n)
	}
}

func newJob(t *testing.T, jobType vo.JobType, priority int, parent string) *entity.RunnerJob {
	t.Helper()
	job, err := entity.NewRunnerJob(jobType, videoUUID, priority, nil, nil, parent)
	require.NoError(t, err)
	return job
}

func TestRunnerJobRepository_ListAvailableOrdering(t *testing.T) {
	jobs := persistence.NewRunnerJobRepository(testutil.NewDB(t))
	ctx := context.Background()

	low := newJob(t, vo.JobTypeHLSTranscoding, 100, "")
	high := newJob(t, vo.JobTypeWebVideoTranscoding, 10, "")
	waiting := newJob(t, vo.JobTypeHLSTranscoding, 1, low.JobUUID())
	for _, j := range []*entity.RunnerJob{low, high, waiting} {
		require.NoError(t, jobs.Create(ctx, j))
	}

	available, err := jobs.ListAvailable(ctx, 10, nil)
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, high.JobUUID(), available[0].JobUUID())
	assert.Equal(t, low.JobUUID(), available[1].JobUUID())

	available, err = jobs.ListAvailable(ctx, 10, []vo.JobType{vo.JobTypeHLSTranscoding})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, low.JobUUID(), available[0].JobUUID())

	released, err := jobs.ReleaseChildren(ctx, low.JobUUID())
	require.NoError(t, err)
	assert.EqualValues(t, 1, released)

	available, err = jobs.ListAvailable(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, waiting.JobUUID(), available[0].JobUUID())
}

func TestRunnerJobRepository_UpdateIfStateDetectsRace(t *testing.T) {
	jobs := persistence.NewRunnerJobRepository(testutil.NewDB(t))
	ctx := context.Background()
	job := newJob(t, vo.JobTypeHLSTranscoding, 1, "")
	require.NoError(t, jobs.Create(ctx, job))

	first, err := jobs.GetByUUID(ctx, job.JobUUID())
	require.NoError(t, err)
	second, err := jobs.GetByUUID(ctx, job.JobUUID())
	require.NoError(t, err)

	_, err = first.Accept("runner-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, jobs.UpdateIfState(ctx, first, vo.JobStatePending))

	_, err = second.Accept("runner-2", time.Now())
	require.NoError(t, err)
	err = jobs.UpdateIfState(ctx, second, vo.JobStatePending)
	assert.ErrorIs(t, err, entity.ErrConflict)

	stored, err := jobs.GetByUUID(ctx, job.JobUUID())
	require.NoError(t, err)
	assert.Equal(t, "runner-1", stored.RunnerUUID())
	assert.Equal(t, first.ProcessingToken(), stored.ProcessingToken())
	assert.JSONEq(t, "{}", string(stored.Payload()))

	missing, err := jobs.GetByUUID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRunnerJobRepository_UpdateIfStateRejectsCopyFromEarlierLease(t *testing.T) {
	jobs := persistence.NewRunnerJobRepository(testutil.NewDB(t))
	ctx := context.Background()
	job := newJob(t, vo.JobTypeHLSTranscoding, 1, "")
	require.NoError(t, jobs.Create(ctx, job))

	_, err := job.Accept("runner-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, jobs.UpdateIfState(ctx, job, vo.JobStatePending))
	assert.Equal(t, 1, job.Version())

	stale, err := jobs.GetByUUID(ctx, job.JobUUID())
	require.NoError(t, err)

	// runner-1 失败回到 pending，随后 runner-2 领取：状态又回到 processing
	_, err = job.RegisterFailure("boom", 5, true, time.Now())
	require.NoError(t, err)
	require.NoError(t, jobs.UpdateIfState(ctx, job, vo.JobStateProcessing))
	_, err = job.Accept("runner-2", time.Now())
	require.NoError(t, err)
	require.NoError(t, jobs.UpdateIfState(ctx, job, vo.JobStatePending))
	assert.Equal(t, 3, job.Version())

	require.NoError(t, stale.BeginCompleting(time.Now()))
	err = jobs.UpdateIfState(ctx, stale, vo.JobStateProcessing)
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.ErrorIs(t, err, entity.ErrStaleJob)

	stored, err := jobs.GetByUUID(ctx, job.JobUUID())
	require.NoError(t, err)
	assert.Equal(t, vo.JobStateProcessing, stored.State())
	assert.Equal(t, "runner-2", stored.RunnerUUID())
	assert.Equal(t, job.ProcessingToken(), stored.ProcessingToken())
	assert.Equal(t, 1, stored.FailureCount())
	assert.Equal(t, 3, stored.Version())
}

func TestRunnerJobRepository_ReleaseChildrenAdvancesVersion(t *testing.T) {
	jobs := persistence.NewRunnerJobRepository(testutil.NewDB(t))
	ctx := context.Background()
	parent := newJob(t, vo.JobTypeHLSTranscoding, 1, "")
	require.NoError(t, jobs.Create(ctx, parent))
	child := newJob(t, vo.JobTypeHLSTranscoding, 1, parent.JobUUID())
	require.NoError(t, jobs.Create(ctx, child))

	stale, err := jobs.GetByUUID(ctx, child.JobUUID())
	require.NoError(t, err)
	_, err = jobs.ReleaseChildren(ctx, parent.JobUUID())
	require.NoError(t, err)

	require.NoError(t, stale.MarkParentTerminal(vo.JobStateParentCancelled, "", time.Now()))
	err = jobs.UpdateIfState(ctx, stale, vo.JobStateWaitingForParent)
	assert.ErrorIs(t, err, entity.ErrStaleJob)
}

func TestRunnerJobRepository_ListStaleProcessing(t *testing.T) {
	jobs := persistence.NewRunnerJobRepository(testutil.NewDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	stale := newJob(t, vo.JobTypeHLSTranscoding, 1, "")
	_, err := stale.Accept("runner-1", now.Add(-2*time.Hour))
	require.NoError(t, err)
	fresh := newJob(t, vo.JobTypeHLSTranscoding, 1, "")
	_, err = fresh.Accept("runner-1", now)
	require.NoError(t, err)
	require.NoError(t, jobs.Create(ctx, stale))
	require.NoError(t, jobs.Create(ctx, fresh))

	list, err := jobs.ListStaleProcessing(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stale.JobUUID(), list[0].JobUUID())

	processing, err := jobs.ListProcessingByRunner(ctx, "runner-1")
	require.NoError(t, err)
	assert.Len(t, processing, 2)
}

func TestRunnerJobRepository_ListFilter(t *testing.T) {
	jobs := persistence.NewRunnerJobRepository(testutil.NewDB(t))
	ctx := context.Background()
	parent := newJob(t, vo.JobTypeWebVideoTranscoding, 1, "")
	require.NoError(t, jobs.Create(ctx, parent))
	for i := 0; i < 3; i++ {
		require.NoError(t, jobs.Create(ctx, newJob(t, vo.JobTypeHLSTranscoding, 2, parent.JobUUID())))
	}

	list, total, err := jobs.List(ctx, repo.RunnerJobFilter{States: []vo.JobState{vo.JobStateWaitingForParent}, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 2)

	children, err := jobs.ListChildren(ctx, parent.JobUUID())
	require.NoError(t, err)
	assert.Len(t, children, 3)
}

func TestCachedRunnerRepository_ServesTokenLookupsFromCache(t *testing.T) {
	db := testutil.NewDB(t)
	runners := persistence.NewCachedRunnerRepository(persistence.NewRunnerRepository(db), 16, time.Minute)
	ctx := context.Background()

	runner, err := entity.NewRunner("gpu-box", "", "10.0.0.8")
	require.NoError(t, err)
	runner.AssignToken("token-1")
	require.NoError(t, runners.Create(ctx, runner))

	got, err := runners.GetByToken(ctx, "token-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, runner.RunnerUUID(), got.RunnerUUID())

	require.NoError(t, runners.Delete(ctx, got))
	gone, err := runners.GetByToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRunnerRepository_RegistrationTokens(t *testing.T) {
	runners := persistence.NewRunnerRepository(testutil.NewDB(t))
	ctx := context.Background()

	token := entity.NewRegistrationToken()
	require.NoError(t, runners.CreateRegistrationToken(ctx, token))

	got, err := runners.GetRegistrationToken(ctx, token.Token())
	require.NoError(t, err)
	require.NotNil(t, got)

	missing, err := runners.GetRegistrationToken(ctx, "ptrrt-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := runners.ListRegistrationTokens(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
