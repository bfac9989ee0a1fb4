package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/repo"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/database/persistence"
	"transcode-orchestrator/internal/testutil"
)

// recordingHandler 记录回调的 handler，可注入失败
type recordingHandler struct {
	jobType   vo.JobType
	counter   vo.JobInfoCounter
	abortable bool
	creator   service.JobCreator

	completeErr   error
	completePanic bool
	// onError 在 OnError 中同步执行，用来在状态机写库之前插入并发操作
	onError func(job *entity.RunnerJob)

	mu        sync.Mutex
	created   []service.CreateJobParams
	completed []string
	errored   map[string]bool
	errorLog  map[string][]bool
	cancelled map[string]bool
	aborted   []string
}

func newRecordingHandler(jobType vo.JobType, counter vo.JobInfoCounter, abortable bool) *recordingHandler {
	return &recordingHandler{
		jobType:   jobType,
		counter:   counter,
		abortable: abortable,
		errored:   make(map[string]bool),
		errorLog:  make(map[string][]bool),
		cancelled: make(map[string]bool),
	}
}

func (h *recordingHandler) Type() vo.JobType           { return h.jobType }
func (h *recordingHandler) Counter() vo.JobInfoCounter { return h.counter }
func (h *recordingHandler) SupportsAbort() bool        { return h.abortable }

func (h *recordingHandler) Create(ctx context.Context, params service.CreateJobParams) (*entity.RunnerJob, error) {
	parent := ""
	if params.DependsOn != nil {
		parent = params.DependsOn.JobUUID()
	}
	job, err := entity.NewRunnerJob(h.jobType, params.Video.VideoUUID(), params.Priority, nil, nil, parent)
	if err != nil {
		return nil, err
	}
	if err := h.creator.CreateJob(ctx, job, h.counter); err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.created = append(h.created, params)
	h.mu.Unlock()
	return job, nil
}

func (h *recordingHandler) OnUpdate(context.Context, *entity.RunnerJob) error { return nil }

func (h *recordingHandler) OnComplete(_ context.Context, job *entity.RunnerJob, _ vo.JobResultPayload) error {
	if h.completePanic {
		panic("disk vanished")
	}
	if h.completeErr != nil {
		return h.completeErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = append(h.completed, job.JobUUID())
	return nil
}

func (h *recordingHandler) OnError(_ context.Context, job *entity.RunnerJob, _ string, fromParent bool) error {
	h.mu.Lock()
	h.errored[job.JobUUID()] = fromParent
	h.errorLog[job.JobUUID()] = append(h.errorLog[job.JobUUID()], fromParent)
	hook := h.onError
	h.mu.Unlock()
	if hook != nil {
		hook(job)
	}
	return nil
}

// errorCalls 返回某个 job 每次 OnError 的 fromParent 参数
func (h *recordingHandler) errorCalls(jobUUID string) []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool(nil), h.errorLog[jobUUID]...)
}

func (h *recordingHandler) OnCancel(_ context.Context, job *entity.RunnerJob, fromParent bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled[job.JobUUID()] = fromParent
	return nil
}

func (h *recordingHandler) OnAbort(_ context.Context, job *entity.RunnerJob) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aborted = append(h.aborted, job.JobUUID())
	return nil
}

func (h *recordingHandler) createdParams() []service.CreateJobParams {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]service.CreateJobParams(nil), h.created...)
}

// fixture 基于内存 sqlite 的完整状态机
type fixture struct {
	db          *gorm.DB
	videos      repo.VideoRepository
	infos       repo.JobInfoRepository
	jobRepo     repo.RunnerJobRepository
	registry    *service.HandlerRegistry
	publication service.PublicationService
	jobs        service.RunnerJobService
}

func newFixture(t *testing.T, handlers ...*recordingHandler) *fixture {
	t.Helper()
	return newFixtureWithOptions(t, service.RunnerJobServiceOptions{MaxFailures: 3}, handlers...)
}

func newFixtureWithOptions(t *testing.T, opts service.RunnerJobServiceOptions, handlers ...*recordingHandler) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:       db,
		videos:   persistence.NewVideoRepository(db),
		infos:    persistence.NewJobInfoRepository(db),
		jobRepo:  persistence.NewRunnerJobRepository(db),
		registry: service.NewHandlerRegistry(),
	}
	f.publication = service.NewPublicationService(f.videos, f.infos, nil, nil, false)
	f.jobs = service.NewRunnerJobService(f.jobRepo, f.infos, f.registry, f.publication, nil, opts)
	for _, h := range handlers {
		h.creator = f.jobs
		f.registry.Register(h)
	}
	return f
}

func (f *fixture) video(t *testing.T, videoUUID string) *entity.Video {
	t.Helper()
	v, err := f.videos.GetByUUID(context.Background(), videoUUID)
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}

// create 通过 handler 创建 job
func (f *fixture) create(t *testing.T, h *recordingHandler, videoUUID string, parent *entity.RunnerJob) *entity.RunnerJob {
	t.Helper()
	job, err := h.Create(context.Background(), service.CreateJobParams{
		Video:     f.video(t, videoUUID),
		DependsOn: parent,
		Priority:  100,
	})
	require.NoError(t, err)
	return job
}

func (f *fixture) accept(t *testing.T, jobUUID, runnerUUID string) *entity.RunnerJob {
	t.Helper()
	job, err := f.jobs.Accept(context.Background(), jobUUID, runnerUUID)
	require.NoError(t, err)
	return job
}

func (f *fixture) state(t *testing.T, jobUUID string) vo.JobState {
	t.Helper()
	job, err := f.jobs.Get(context.Background(), jobUUID)
	require.NoError(t, err)
	return job.State()
}
