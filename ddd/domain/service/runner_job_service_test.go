package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/internal/testutil"
)

const videoUUID = "3f1c9a52-0d6e-4d8a-9b5e-6a2b1c7d8e90"

func newTranscodeFixture(t *testing.T) (*fixture, *recordingHandler) {
	t.Helper()
	h := newRecordingHandler(vo.JobTypeHLSTranscoding, vo.CounterPendingTranscode, true)
	f := newFixture(t, h)
	testutil.SeedVideo(t, f.db, videoUUID, vo.VideoStateToTranscode, "input.mp4")
	return f, h
}

func TestCreateJob_CountsPendingTranscode(t *testing.T) {
	f, h := newTranscodeFixture(t)
	parent := f.create(t, h, videoUUID, nil)
	child := f.create(t, h, videoUUID, parent)

	assert.Equal(t, vo.JobStatePending, parent.State())
	assert.Equal(t, vo.JobStateWaitingForParent, child.State())

	info, err := f.infos.Get(context.Background(), videoUUID)
	require.NoError(t, err)
	assert.Equal(t, 2, info.PendingTranscode)

	available, err := f.jobs.ListAvailable(context.Background(), 10, nil)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, parent.JobUUID(), available[0].JobUUID())
}

func TestAccept_OnlyOneConcurrentRunnerWins(t *testing.T) {
	f, h := newTranscodeFixture(t)
	job := f.create(t, h, videoUUID, nil)

	var (
		wins      int32
		conflicts int32
		g         errgroup.Group
	)
	for i := 0; i < 8; i++ {
		runner := string(rune('a' + i))
		g.Go(func() error {
			_, err := f.jobs.Accept(context.Background(), job.JobUUID(), "runner-"+runner)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, entity.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, 7, conflicts)
	assert.Equal(t, vo.JobStateProcessing, f.state(t, job.JobUUID()))
}

func TestAccept_UnknownJob(t *testing.T) {
	f, _ := newTranscodeFixture(t)
	_, err := f.jobs.Accept(context.Background(), "missing", "runner-1")
	assert.ErrorIs(t, err, entity.ErrJobNotFound)
}

func TestUpdate_RequiresOwnership(t *testing.T) {
	f, h := newTranscodeFixture(t)
	job := f.accept(t, f.create(t, h, videoUUID, nil).JobUUID(), "runner-1")

	progress := 30
	_, err := f.jobs.Update(context.Background(), job.JobUUID(), "runner-2", job.ProcessingToken(), &progress)
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))

	updated, err := f.jobs.Update(context.Background(), job.JobUUID(), "runner-1", job.ProcessingToken(), &progress)
	require.NoError(t, err)
	require.NotNil(t, updated.Progress())
	assert.Equal(t, 30, *updated.Progress())
}

func TestComplete_ReleasesChildrenAndPublishes(t *testing.T) {
	f, h := newTranscodeFixture(t)
	ctx := context.Background()
	parent := f.create(t, h, videoUUID, nil)
	child := f.create(t, h, videoUUID, parent)

	accepted := f.accept(t, parent.JobUUID(), "runner-1")
	require.NoError(t, f.videos.UpsertFile(ctx, videoUUID, vo.VideoFile{Kind: vo.VideoFileKindHLS, Resolution: 720, FPS: 30}))
	done, err := f.jobs.Complete(ctx, parent.JobUUID(), "runner-1", accepted.ProcessingToken(), vo.JobResultPayload{})
	require.NoError(t, err)
	assert.Equal(t, vo.JobStateCompleted, done.State())
	assert.Equal(t, vo.JobStatePending, f.state(t, child.JobUUID()))
	assert.Equal(t, vo.VideoStateToTranscode, testutil.VideoState(t, f.db, videoUUID))

	acceptedChild := f.accept(t, child.JobUUID(), "runner-2")
	_, err = f.jobs.Complete(ctx, child.JobUUID(), "runner-2", acceptedChild.ProcessingToken(), vo.JobResultPayload{})
	require.NoError(t, err)

	info, err := f.infos.Get(ctx, videoUUID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.PendingTranscode)
	assert.Equal(t, vo.VideoStatePublished, testutil.VideoState(t, f.db, videoUUID))
	assert.Len(t, h.completed, 2)
}

func TestComplete_StaleTokenIsRejected(t *testing.T) {
	f, h := newTranscodeFixture(t)
	job := f.accept(t, f.create(t, h, videoUUID, nil).JobUUID(), "runner-1")
	token := job.ProcessingToken()

	_, err := f.jobs.Complete(context.Background(), job.JobUUID(), "runner-1", token, vo.JobResultPayload{})
	require.NoError(t, err)

	_, err = f.jobs.Complete(context.Background(), job.JobUUID(), "runner-1", token, vo.JobResultPayload{})
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.Len(t, h.completed, 1)
}

func TestError_RetriesUntilCeilingThenCascades(t *testing.T) {
	f, h := newTranscodeFixture(t)
	ctx := context.Background()
	parent := f.create(t, h, videoUUID, nil)
	child := f.create(t, h, videoUUID, parent)
	grandchild := f.create(t, h, videoUUID, child)

	for attempt := 1; attempt <= 3; attempt++ {
		job := f.accept(t, parent.JobUUID(), "runner-1")
		failed, err := f.jobs.Error(ctx, job.JobUUID(), "runner-1", job.ProcessingToken(), "ffmpeg exited 1")
		require.NoError(t, err)
		assert.Equal(t, attempt, failed.FailureCount())
		if attempt < 3 {
			assert.Equal(t, vo.JobStatePending, failed.State())
		} else {
			assert.Equal(t, vo.JobStateErrored, failed.State())
		}
	}

	assert.Equal(t, vo.JobStateParentErrored, f.state(t, child.JobUUID()))
	assert.Equal(t, vo.JobStateParentErrored, f.state(t, grandchild.JobUUID()))
	assert.True(t, h.errored[child.JobUUID()])
	assert.True(t, h.errored[grandchild.JobUUID()])
	assert.False(t, h.errored[parent.JobUUID()])

	info, err := f.infos.Get(ctx, videoUUID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.PendingTranscode)
	assert.Equal(t, vo.VideoStateTranscodingFailed, testutil.VideoState(t, f.db, videoUUID))
}

func TestError_DefaultCeilingIsFiveAndCascadeNotifiesOnce(t *testing.T) {
	h := newRecordingHandler(vo.JobTypeHLSTranscoding, vo.CounterPendingTranscode, true)
	f := newFixtureWithOptions(t, service.RunnerJobServiceOptions{}, h)
	testutil.SeedVideo(t, f.db, videoUUID, vo.VideoStateToTranscode, "input.mp4")
	ctx := context.Background()
	parent := f.create(t, h, videoUUID, nil)
	child := f.create(t, h, videoUUID, parent)
	grandchild := f.create(t, h, videoUUID, child)

	for attempt := 1; attempt <= 5; attempt++ {
		job := f.accept(t, parent.JobUUID(), "runner-1")
		failed, err := f.jobs.Error(ctx, job.JobUUID(), "runner-1", job.ProcessingToken(), "ffmpeg exited 1")
		require.NoError(t, err)
		assert.Equal(t, attempt, failed.FailureCount())

		want := vo.JobStatePending
		if attempt == 5 {
			want = vo.JobStateErrored
		}
		assert.Equal(t, want, failed.State(), "after error %d", attempt)
		assert.Equal(t, want, f.state(t, parent.JobUUID()), "stored state after error %d", attempt)
		if attempt < 5 {
			assert.Equal(t, vo.JobStateWaitingForParent, f.state(t, child.JobUUID()))
		}
	}

	assert.Equal(t, vo.JobStateParentErrored, f.state(t, child.JobUUID()))
	assert.Equal(t, vo.JobStateParentErrored, f.state(t, grandchild.JobUUID()))
	assert.Equal(t, []bool{true}, h.errorCalls(child.JobUUID()))
	assert.Equal(t, []bool{true}, h.errorCalls(grandchild.JobUUID()))
	assert.Equal(t, []bool{false, false, false, false, false}, h.errorCalls(parent.JobUUID()))
}

func TestError_StaleReportCannotOverwriteNextLease(t *testing.T) {
	f, h := newTranscodeFixture(t)
	ctx := context.Background()
	job := f.accept(t, f.create(t, h, videoUUID, nil).JobUUID(), "runner-1")
	token := job.ProcessingToken()

	// 第一次上报在写库前被挂起：同一报错被重复投递，随后 runner-2 领走了重新排队的 job
	var next *entity.RunnerJob
	h.onError = func(*entity.RunnerJob) {
		h.onError = nil
		requeued, err := f.jobs.Error(ctx, job.JobUUID(), "runner-1", token, "ffmpeg exited 1")
		require.NoError(t, err)
		require.Equal(t, vo.JobStatePending, requeued.State())
		next = f.accept(t, job.JobUUID(), "runner-2")
	}

	_, err := f.jobs.Error(ctx, job.JobUUID(), "runner-1", token, "ffmpeg exited 1")
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.ErrorIs(t, err, entity.ErrStaleJob)

	stored, err := f.jobs.Get(ctx, job.JobUUID())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, vo.JobStateProcessing, stored.State())
	assert.Equal(t, "runner-2", stored.RunnerUUID())
	assert.Equal(t, next.ProcessingToken(), stored.ProcessingToken())
	assert.Equal(t, 1, stored.FailureCount())

	progress := 10
	_, err = f.jobs.Update(ctx, job.JobUUID(), "runner-2", next.ProcessingToken(), &progress)
	require.NoError(t, err)
}

func TestAbort_RequeuesWithoutCountingFailure(t *testing.T) {
	f, h := newTranscodeFixture(t)
	job := f.accept(t, f.create(t, h, videoUUID, nil).JobUUID(), "runner-1")

	aborted, err := f.jobs.Abort(context.Background(), job.JobUUID(), "runner-1", job.ProcessingToken(), "shutting down")
	require.NoError(t, err)
	assert.Equal(t, vo.JobStatePending, aborted.State())
	assert.Equal(t, 0, aborted.FailureCount())
	assert.Equal(t, []string{job.JobUUID()}, h.aborted)
}

func TestAbort_UnsupportedTypeIsAFailure(t *testing.T) {
	live := newRecordingHandler(vo.JobTypeLiveTranscoding, vo.CounterNone, false)
	f := newFixture(t, live)
	testutil.SeedVideo(t, f.db, videoUUID, vo.VideoStateWaitingForLive, "")
	job := f.accept(t, f.create(t, live, videoUUID, nil).JobUUID(), "runner-1")

	aborted, err := f.jobs.Abort(context.Background(), job.JobUUID(), "runner-1", job.ProcessingToken(), "bye")
	require.NoError(t, err)
	assert.Equal(t, vo.JobStateErrored, aborted.State())
	assert.Equal(t, service.MessageAbortNotSupported, aborted.LastError())
	assert.Empty(t, live.aborted)
	assert.Equal(t, vo.VideoStateWaitingForLive, testutil.VideoState(t, f.db, videoUUID))
}

func TestComplete_HandlerFailureErrorsJob(t *testing.T) {
	f, h := newTranscodeFixture(t)
	parent := f.create(t, h, videoUUID, nil)
	child := f.create(t, h, videoUUID, parent)
	job := f.accept(t, parent.JobUUID(), "runner-1")

	h.completeErr = errors.New("rename output: no space left on device")
	done, err := f.jobs.Complete(context.Background(), job.JobUUID(), "runner-1", job.ProcessingToken(), vo.JobResultPayload{})
	require.NoError(t, err)
	assert.Equal(t, vo.JobStateErrored, done.State())
	assert.Contains(t, done.LastError(), "no space left")
	assert.Equal(t, vo.JobStateParentErrored, f.state(t, child.JobUUID()))
	assert.Equal(t, vo.VideoStateTranscodingFailed, testutil.VideoState(t, f.db, videoUUID))
}

func TestComplete_HandlerPanicErrorsJob(t *testing.T) {
	f, h := newTranscodeFixture(t)
	job := f.accept(t, f.create(t, h, videoUUID, nil).JobUUID(), "runner-1")

	h.completePanic = true
	done, err := f.jobs.Complete(context.Background(), job.JobUUID(), "runner-1", job.ProcessingToken(), vo.JobResultPayload{})
	require.NoError(t, err)
	assert.Equal(t, vo.JobStateErrored, done.State())
	assert.Contains(t, done.LastError(), "disk vanished")
}

func TestCancel_CascadesParentCancelled(t *testing.T) {
	f, h := newTranscodeFixture(t)
	ctx := context.Background()
	parent := f.create(t, h, videoUUID, nil)
	child := f.create(t, h, videoUUID, parent)

	cancelled, err := f.jobs.Cancel(ctx, parent.JobUUID())
	require.NoError(t, err)
	assert.Equal(t, vo.JobStateCancelled, cancelled.State())
	assert.Equal(t, vo.JobStateParentCancelled, f.state(t, child.JobUUID()))
	assert.False(t, h.cancelled[parent.JobUUID()])
	assert.True(t, h.cancelled[child.JobUUID()])

	_, err = f.jobs.Cancel(ctx, parent.JobUUID())
	assert.ErrorIs(t, err, entity.ErrConflict)

	info, err := f.infos.Get(ctx, videoUUID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.PendingTranscode)
}

func TestForceError_OnlyProcessingJobs(t *testing.T) {
	f, h := newTranscodeFixture(t)
	job := f.create(t, h, videoUUID, nil)

	_, err := f.jobs.ForceError(context.Background(), job.JobUUID(), "runner stopped responding")
	assert.ErrorIs(t, err, entity.ErrConflict)

	f.accept(t, job.JobUUID(), "runner-1")
	failed, err := f.jobs.ForceError(context.Background(), job.JobUUID(), "runner stopped responding")
	require.NoError(t, err)
	assert.Equal(t, vo.JobStatePending, failed.State())
	assert.Equal(t, 1, failed.FailureCount())

	processing, err := f.jobs.ListProcessingByRunner(context.Background(), "runner-1")
	require.NoError(t, err)
	assert.Empty(t, processing)
}

func TestLiveJobExit_EndsLiveThroughSettlement(t *testing.T) {
	const otherVideo = "7b2e4c1d-9f0a-4e3b-8c5d-1a2b3c4d5e6f"
	h := newRecordingHandler(vo.JobTypeLiveTranscoding, vo.CounterNone, false)
	f := newFixture(t, h)
	testutil.SeedVideo(t, f.db, videoUUID, vo.VideoStateWaitingForLive, "")
	testutil.SeedVideo(t, f.db, otherVideo, vo.VideoStateWaitingForLive, "")
	ctx := context.Background()

	dropped := f.accept(t, f.create(t, h, videoUUID, nil).JobUUID(), "runner-1")
	failed, err := f.jobs.Error(ctx, dropped.JobUUID(), "runner-1", dropped.ProcessingToken(), "stream dropped")
	require.NoError(t, err)
	assert.Equal(t, vo.JobStateErrored, failed.State())
	assert.Equal(t, vo.VideoStateLiveEnded, testutil.VideoState(t, f.db, videoUUID))

	ended := f.accept(t, f.create(t, h, otherVideo, nil).JobUUID(), "runner-1")
	_, err = f.jobs.Complete(ctx, ended.JobUUID(), "runner-1", ended.ProcessingToken(), vo.JobResultPayload{})
	require.NoError(t, err)
	assert.Equal(t, vo.VideoStateLiveEnded, testutil.VideoState(t, f.db, otherVideo))

	info, err := f.infos.Get(ctx, otherVideo)
	require.NoError(t, err)
	assert.Equal(t, 0, info.PendingTranscode)
}
