package app

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcode-orchestrator/ddd/application/cqe"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/auth"
	"transcode-orchestrator/ddd/infrastructure/queue"
	"transcode-orchestrator/ddd/infrastructure/storage"
	"transcode-orchestrator/internal/testutil"
	"transcode-orchestrator/pkg/config"
	"transcode-orchestrator/pkg/errno"
)

const testVideo = "5a6b7c8d-9e0f-4a1b-8c2d-3e4f5a6b7c8d"

type fixedProbe struct{ meta vo.StreamMetadata }

func (p fixedProbe) Probe(context.Context, string) (*vo.StreamMetadata, error) {
	m := p.meta
	return &m, nil
}

type dispatchFixture struct {
	engine   *Engine
	store    *storage.LocalFileStore
	dispatch RunnerDispatchApp
	admin    RunnerAdminApp
	jobs     JobAdminApp
	videos   VideoApp
	notifier *queue.LocalNotifier
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedVideo(t, db, testVideo, vo.VideoStateToTranscode, "source.mp4")

	cfg := &config.Config{}
	cfg.Transcode.Resolutions = map[string]bool{"480p": true, "720p": true}
	cfg.Transcode.HLSEnabled = true
	cfg.Transcode.BasePriority = 100
	cfg.Dispatch.PublicURL = "http://orchestrator.test"
	cfg.Dispatch.AvailableJobsLimit = 10
	cfg.Dispatch.RunnerCacheSize = 16
	cfg.Dispatch.RunnerCacheTTL = time.Minute
	cfg.Scheduler.MaxFailures = 3
	cfg.Scheduler.JobStaleTimeout = time.Minute
	cfg.Scheduler.SweepBatchSize = 10

	store := storage.NewLocalFileStore(afero.NewMemMapFs(), "/srv/videos", "/srv/inputs", "/srv/staging")
	require.NoError(t, store.WriteFile(store.InputPath(testVideo, "source.mp4"), []byte("source-bytes")))
	require.NoError(t, store.WriteFile(store.InputPath(testVideo, "preview.jpg"), []byte("jpeg")))

	issuer, err := auth.NewJWTTokenIssuer("integration-secret", "transcode-orchestrator")
	require.NoError(t, err)
	notifier := queue.NewLocalNotifier()

	engine, err := NewEngine(EngineDeps{
		DB:       db,
		Config:   cfg,
		Store:    store,
		Probe:    fixedProbe{meta: vo.StreamMetadata{Width: 1280, Height: 720, FPS: 30, HasVideo: true, Duration: 12}},
		Issuer:   issuer,
		Notifier: notifier,
		Throttle: queue.NewLocalContactThrottle(16, time.Minute),
	})
	require.NoError(t, err)

	return &dispatchFixture{
		engine:   engine,
		store:    store,
		dispatch: NewRunnerDispatchApp(engine),
		admin:    NewRunnerAdminApp(engine),
		jobs:     NewJobAdminApp(engine),
		videos:   NewVideoApp(engine),
		notifier: notifier,
	}
}

func (f *dispatchFixture) registerRunner(t *testing.T, name string) string {
	t.Helper()
	ctx := context.Background()
	token, err := f.admin.CreateRegistrationToken(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token.RegistrationToken, "ptrrt-"))

	registered, err := f.dispatch.Register(ctx, &cqe.RegisterRunnerReq{RegistrationToken: token.RegistrationToken, Name: name})
	require.NoError(t, err)
	require.NotEmpty(t, registered.RunnerToken)
	return registered.RunnerToken
}

func upload(field, name, content string) cqe.UploadedFile {
	return cqe.UploadedFile{
		Field:    field,
		Filename: name,
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func jobAuth(runnerToken, jobToken string) cqe.JobAuthReq {
	return cqe.JobAuthReq{RunnerAuthReq: cqe.RunnerAuthReq{RunnerToken: runnerToken}, JobToken: jobToken}
}

func TestDispatch_FullTranscodeLifecycle(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	runnerToken := f.registerRunner(t, "gpu-01")

	created, err := f.videos.Transcode(ctx, &cqe.TranscodeVideoReq{VideoUUID: testVideo})
	require.NoError(t, err)
	require.Len(t, created.Jobs, 2)

	finished := 0
	for finished < len(created.Jobs) {
		available, err := f.dispatch.RequestJobs(ctx, &cqe.RequestJobsReq{RunnerAuthReq: cqe.RunnerAuthReq{RunnerToken: runnerToken}})
		require.NoError(t, err)
		require.Len(t, available.AvailableJobs, 1, "children only appear after their parent completed")
		jobUUID := available.AvailableJobs[0].UUID

		accepted, err := f.dispatch.Accept(ctx, jobUUID, &cqe.RunnerAuthReq{RunnerToken: runnerToken})
		require.NoError(t, err)
		jobToken := accepted.Job.JobToken

		download, err := f.dispatch.DownloadInput(ctx, &cqe.DownloadFileReq{
			JobAuthReq: jobAuth(runnerToken, jobToken), JobUUID: jobUUID, VideoUUID: testVideo,
		})
		require.NoError(t, err)
		body, err := io.ReadAll(download.Reader)
		require.NoError(t, err)
		require.NoError(t, download.Reader.Close())
		assert.Equal(t, "source-bytes", string(body))

		progress := 50
		require.NoError(t, f.dispatch.Update(ctx, jobUUID, &cqe.UpdateJobReq{JobAuthReq: jobAuth(runnerToken, jobToken), Progress: &progress}))

		err = f.dispatch.Success(ctx, jobUUID, &cqe.SuccessJobReq{JobAuthReq: jobAuth(runnerToken, jobToken)}, []cqe.UploadedFile{
			upload("payload[videoFile]", "segment.mp4", "fmp4"),
			upload("payload[resolutionPlaylistFile]", "segment.m3u8", "#EXTM3U\nsegment.mp4\n"),
		})
		require.NoError(t, err)
		finished++
	}

	video, err := f.engine.Videos.GetByUUID(ctx, testVideo)
	require.NoError(t, err)
	assert.Equal(t, vo.VideoStatePublished, video.State())
	assert.Len(t, video.FilesOfKind(vo.VideoFileKindHLS), 2)
	assert.Equal(t, float64(12), video.Duration())
	assert.True(t, f.store.Exists(f.store.MasterPlaylistPath(testVideo)))

	list, err := f.jobs.List(ctx, &cqe.ListJobsQuery{State: "completed"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)
}

func TestDispatch_SecondAcceptIsRejected(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	first := f.registerRunner(t, "runner-a")
	second := f.registerRunner(t, "runner-b")

	created, err := f.videos.Transcode(ctx, &cqe.TranscodeVideoReq{VideoUUID: testVideo})
	require.NoError(t, err)
	mainJob := created.Jobs[0].UUID

	_, err = f.dispatch.Accept(ctx, mainJob, &cqe.RunnerAuthReq{RunnerToken: first})
	require.NoError(t, err)
	_, err = f.dispatch.Accept(ctx, mainJob, &cqe.RunnerAuthReq{RunnerToken: second})
	assert.Equal(t, errno.ErrJobNotAvailable, errno.FromError(err))

	err = f.dispatch.Update(ctx, mainJob, &cqe.UpdateJobReq{JobAuthReq: jobAuth(second, "guess")})
	assert.Equal(t, errno.ErrInvalidParam, errno.FromError(err))

	_, err = f.dispatch.DownloadInput(ctx, &cqe.DownloadFileReq{
		JobAuthReq: jobAuth(second, "guess"), JobUUID: mainJob, VideoUUID: testVideo, Preview: true,
	})
	assert.Error(t, err)
}

func TestDispatch_UnknownRunnerToken(t *testing.T) {
	f := newDispatchFixture(t)

	_, err := f.dispatch.RequestJobs(context.Background(), &cqe.RequestJobsReq{RunnerAuthReq: cqe.RunnerAuthReq{RunnerToken: "forged"}})
	assert.Equal(t, errno.ErrRunnerNotFound, errno.FromError(err))

	_, err = f.dispatch.Register(context.Background(), &cqe.RegisterRunnerReq{RegistrationToken: "ptrrt-unknown", Name: "x"})
	assert.Equal(t, errno.ErrRegistrationTokenNotFound, errno.FromError(err))
}

func TestDispatch_RequestJobsWaitsForNotification(t *testing.T) {
	f := newDispatchFixture(t)
	f.engine.MaxRequestWait = 5 * time.Second
	runnerToken := f.registerRunner(t, "poller")
	ctx := context.Background()

	go func() {
		// 等待长轮询订阅后再创建任务
		for f.notifier.Subscribers() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		_, _ = f.videos.Transcode(ctx, &cqe.TranscodeVideoReq{VideoUUID: testVideo})
	}()

	start := time.Now()
	available, err := f.dispatch.RequestJobs(ctx, &cqe.RequestJobsReq{RunnerAuthReq: cqe.RunnerAuthReq{RunnerToken: runnerToken}})
	require.NoError(t, err)
	assert.Len(t, available.AvailableJobs, 1)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDispatch_RequestJobsTimesOutEmpty(t *testing.T) {
	f := newDispatchFixture(t)
	f.engine.MaxRequestWait = 30 * time.Millisecond
	runnerToken := f.registerRunner(t, "idle")

	available, err := f.dispatch.RequestJobs(context.Background(), &cqe.RequestJobsReq{RunnerAuthReq: cqe.RunnerAuthReq{RunnerToken: runnerToken}})
	require.NoError(t, err)
	assert.Empty(t, available.AvailableJobs)
	assert.Equal(t, 0, f.notifier.Subscribers())
}

func TestDispatch_UnregisterReleasesJobs(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	runnerToken := f.registerRunner(t, "leaving")

	created, err := f.videos.Transcode(ctx, &cqe.TranscodeVideoReq{VideoUUID: testVideo})
	require.NoError(t, err)
	mainJob := created.Jobs[0].UUID
	_, err = f.dispatch.Accept(ctx, mainJob, &cqe.RunnerAuthReq{RunnerToken: runnerToken})
	require.NoError(t, err)

	require.NoError(t, f.dispatch.Unregister(ctx, &cqe.RunnerAuthReq{RunnerToken: runnerToken}))

	job, err := f.jobs.Get(ctx, mainJob)
	require.NoError(t, err)
	assert.Equal(t, vo.JobStatePending.String(), job.State)
	assert.Equal(t, 1, job.FailureCount)
}

func TestMaintenance_SweepStaleJobs(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	runnerToken := f.registerRunner(t, "vanishing")

	created, err := f.videos.Transcode(ctx, &cqe.TranscodeVideoReq{VideoUUID: testVideo})
	require.NoError(t, err)
	mainJob := created.Jobs[0].UUID
	_, err = f.dispatch.Accept(ctx, mainJob, &cqe.RunnerAuthReq{RunnerToken: runnerToken})
	require.NoError(t, err)

	maintenance := NewMaintenanceApp(f.engine).(*maintenanceAppImpl)
	swept, err := maintenance.SweepStaleJobs(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)

	maintenance.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	swept, err = maintenance.SweepStaleJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	job, err := f.jobs.Get(ctx, mainJob)
	require.NoError(t, err)
	assert.Equal(t, vo.JobStatePending.String(), job.State)
	assert.Equal(t, "runner stopped responding", job.LastError)
}
