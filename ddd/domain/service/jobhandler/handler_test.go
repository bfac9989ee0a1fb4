package jobhandler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/database/persistence"
	"transcode-orchestrator/ddd/infrastructure/storage"
	"transcode-orchestrator/internal/testutil"
)

const (
	testVideoUUID = "8c2d41f0-5b7a-4e3c-a1d9-0f6e2b3c4d5e"
	testPublicURL = "http://orchestrator.local"
)

type memCreator struct {
	jobs     []*entity.RunnerJob
	counters []vo.JobInfoCounter
}

func (c *memCreator) CreateJob(_ context.Context, job *entity.RunnerJob, counter vo.JobInfoCounter) error {
	c.jobs = append(c.jobs, job)
	c.counters = append(c.counters, counter)
	return nil
}

type durationProbe struct{ duration float64 }

func (p durationProbe) Probe(context.Context, string) (*vo.StreamMetadata, error) {
	return &vo.StreamMetadata{Duration: p.duration, HasVideo: true}, nil
}

type handlerFixture struct {
	deps    Dependencies
	creator *memCreator
	store   *storage.LocalFileStore
	video   *entity.Video
}

func newHandlerFixture(t *testing.T, state vo.VideoState) *handlerFixture {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedVideo(t, db, testVideoUUID, state, "input.mp4")
	videos := persistence.NewVideoRepository(db)
	infos := persistence.NewJobInfoRepository(db)

	f := &handlerFixture{
		creator: &memCreator{},
		store:   storage.NewLocalFileStore(afero.NewMemMapFs(), "/srv/videos", "/srv/inputs", "/srv/staging"),
	}
	f.deps = Dependencies{
		Creator:             f.creator,
		Videos:              videos,
		Store:               f.store,
		Probe:               durationProbe{duration: 61.5},
		Publication:         service.NewPublicationService(videos, infos, nil, nil, false),
		PublicURL:           testPublicURL,
		LiveSegmentDuration: 2,
		LiveSegmentListSize: 5,
	}
	video, err := videos.GetByUUID(context.Background(), testVideoUUID)
	require.NoError(t, err)
	f.video = video
	return f
}

func (f *handlerFixture) stage(t *testing.T, job *entity.RunnerJob, name, content string) {
	t.Helper()
	require.NoError(t, f.store.WriteFile(f.store.StagingPath(job.JobUUID(), name), []byte(content)))
}

func (f *handlerFixture) reload(t *testing.T) *entity.Video {
	t.Helper()
	v, err := f.deps.Videos.GetByUUID(context.Background(), testVideoUUID)
	require.NoError(t, err)
	return v
}

func TestHLSHandler_CreateBuildsRunnerPayload(t *testing.T) {
	f := newHandlerFixture(t, vo.VideoStateToTranscode)
	h := NewHLSHandler(f.deps)

	job, err := h.Create(context.Background(), service.CreateJobParams{Video: f.video, Priority: 3, Resolution: 720, FPS: 30, IsMainJob: true})
	require.NoError(t, err)
	require.Len(t, f.creator.jobs, 1)
	assert.Equal(t, vo.CounterPendingTranscode, f.creator.counters[0])

	var payload vo.HLSTranscodingPayload
	require.NoError(t, json.Unmarshal(job.Payload(), &payload))
	assert.Equal(t, testPublicURL+"/api/v1/jobs/"+job.JobUUID()+"/files/videos/"+testVideoUUID+"/max-quality", payload.Input.VideoFileURL)
	assert.Equal(t, 720, payload.Output.Resolution)
	assert.Equal(t, 30, payload.Output.FPS)

	private, err := job.DecodePrivatePayload()
	require.NoError(t, err)
	assert.Equal(t, vo.JobPrivatePayload{VideoUUID: testVideoUUID, IsMainJob: true, Resolution: 720, FPS: 30}, private)
}

func TestHLSHandler_OnCompleteIsRepeatable(t *testing.T) {
	f := newHandlerFixture(t, vo.VideoStateToTranscode)
	h := NewHLSHandler(f.deps)
	ctx := context.Background()

	job, err := h.Create(ctx, service.CreateJobParams{Video: f.video, Resolution: 720, FPS: 30, IsMainJob: true})
	require.NoError(t, err)
	f.stage(t, job, "out.mp4", "fmp4-bytes")
	f.stage(t, job, "out.m3u8", "#EXTM3U\n#EXT-X-MAP:URI=\"out.mp4\"\n#EXTINF:4.0,\nout.mp4\n")

	result := vo.JobResultPayload{VideoFile: "out.mp4", ResolutionPlaylistFile: "../../out.m3u8"}
	require.NoError(t, h.OnComplete(ctx, job, result))

	finalVideo := f.store.HLSFragmentedPath(testVideoUUID, 720)
	assert.True(t, f.store.Exists(finalVideo))
	playlist, err := f.store.ReadFile(f.store.HLSPlaylistPath(testVideoUUID, 720))
	require.NoError(t, err)
	assert.Contains(t, string(playlist), testVideoUUID+"-720-fragmented.mp4")
	assert.NotContains(t, string(playlist), "\"out.mp4\"")

	master, err := f.store.ReadFile(f.store.MasterPlaylistPath(testVideoUUID))
	require.NoError(t, err)
	assert.Contains(t, string(master), "RESOLUTION=1280x720,FRAME-RATE=30\n720.m3u8")
	assert.False(t, f.store.Exists(f.store.StagingDir(job.JobUUID())))

	video := f.reload(t)
	require.Len(t, video.FilesOfKind(vo.VideoFileKindHLS), 1)
	assert.Equal(t, int64(len("fmp4-bytes")), video.Files()[0].Size)
	assert.Equal(t, 61.5, video.Duration())

	require.NoError(t, h.OnComplete(ctx, job, result))
	assert.Len(t, f.reload(t).Files(), 1)
}

func TestHLSHandler_OnCompleteWithoutFiles(t *testing.T) {
	f := newHandlerFixture(t, vo.VideoStateToTranscode)
	h := NewHLSHandler(f.deps)

	job, err := h.Create(context.Background(), service.CreateJobParams{Video: f.video, Resolution: 480, FPS: 30})
	require.NoError(t, err)
	assert.ErrorIs(t, h.OnComplete(context.Background(), job, vo.JobResultPayload{}), ErrMissingResultFile)

	err = h.OnComplete(context.Background(), job, vo.JobResultPayload{VideoFile: "a.mp4", ResolutionPlaylistFile: "a.m3u8"})
	assert.Error(t, err)
	assert.Empty(t, f.reload(t).Files())
}

func TestWebVideoHandler_OnCompleteStoresFile(t *testing.T) {
	f := newHandlerFixture(t, vo.VideoStateToTranscode)
	h := NewWebVideoHandler(f.deps)
	ctx := context.Background()

	job, err := h.Create(ctx, service.CreateJobParams{Video: f.video, Resolution: 360, FPS: 25})
	require.NoError(t, err)
	f.stage(t, job, "web.mp4", "mp4")

	require.NoError(t, h.OnComplete(ctx, job, vo.JobResultPayload{VideoFile: "web.mp4"}))
	assert.True(t, f.store.Exists(f.store.WebVideoPath(testVideoUUID, 360)))

	video := f.reload(t)
	files := video.FilesOfKind(vo.VideoFileKindWebVideo)
	require.Len(t, files, 1)
	assert.Equal(t, testVideoUUID+"-360.mp4", files[0].Filename)
	assert.Zero(t, video.Duration(), "only the main job writes the duration back")
}

func TestAudioMergeHandler_CreateUsesPreview(t *testing.T) {
	f := newHandlerFixture(t, vo.VideoStateToTranscode)
	h := NewAudioMergeHandler(f.deps)

	job, err := h.Create(context.Background(), service.CreateJobParams{Video: f.video, Resolution: 480, FPS: 25})
	require.NoError(t, err)

	var payload vo.AudioMergeTranscodingPayload
	require.NoError(t, json.Unmarshal(job.Payload(), &payload))
	assert.Equal(t, testPublicURL+"/api/v1/jobs/"+job.JobUUID()+"/files/videos/"+testVideoUUID+"/previews/max-quality", payload.Input.PreviewFileURL)

	private, err := job.DecodePrivatePayload()
	require.NoError(t, err)
	assert.True(t, private.IsMainJob)
}

func TestLiveHandler_CreateAndHooks(t *testing.T) {
	f := newHandlerFixture(t, vo.VideoStateWaitingForLive)
	h := NewLiveHandler(f.deps)
	ctx := context.Background()

	_, err := h.Create(ctx, service.CreateJobParams{Video: f.video})
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))

	job, err := h.Create(ctx, service.CreateJobParams{
		Video:   f.video,
		RTMPURL: "rtmp://127.0.0.1:1935/live/key",
		Outputs: []vo.TranscodeOutput{{Resolution: 720, FPS: 30}},
	})
	require.NoError(t, err)
	assert.Equal(t, vo.CounterNone, f.creator.counters[0])
	assert.False(t, h.SupportsAbort())

	var payload vo.LiveTranscodingPayload
	require.NoError(t, json.Unmarshal(job.Payload(), &payload))
	assert.Equal(t, 2, payload.Output.SegmentDuration)
	assert.Equal(t, 5, payload.Output.SegmentListSize)

	// 视频状态由 settleAsset 推进，hook 本身不动视频
	require.NoError(t, h.OnError(ctx, job, "stream dropped", false))
	require.NoError(t, h.OnComplete(ctx, job, vo.JobResultPayload{}))
	require.NoError(t, h.OnCancel(ctx, job, false))
	assert.Equal(t, vo.VideoStateWaitingForLive, f.reload(t).State())
}

type planCounter struct{ calls int }

func (p *planCounter) BuildForVideo(context.Context, string, service.BuildOptions) ([]*entity.RunnerJob, error) {
	p.calls++
	return nil, nil
}

func TestStudioEditHandler_OnCompleteReplacesInput(t *testing.T) {
	f := newHandlerFixture(t, vo.VideoStateToEdit)
	h := NewStudioEditHandler(f.deps)
	ctx := context.Background()
	require.NoError(t, f.deps.Videos.UpsertFile(ctx, testVideoUUID, vo.VideoFile{Kind: vo.VideoFileKindWebVideo, Resolution: 720}))

	job, err := h.Create(ctx, service.CreateJobParams{Video: f.video, StudioTasks: []vo.StudioTask{{Name: "cut"}}})
	require.NoError(t, err)
	f.stage(t, job, "edited.mp4", "edited")

	assert.Error(t, h.OnComplete(ctx, job, vo.JobResultPayload{VideoFile: "edited.mp4"}), "planner must be set")

	planner := &planCounter{}
	h.SetPlanner(planner)
	require.NoError(t, h.OnComplete(ctx, job, vo.JobResultPayload{VideoFile: "edited.mp4"}))

	video := f.reload(t)
	assert.Equal(t, editedFilename(testVideoUUID, job.JobUUID()), video.InputFilename())
	assert.Empty(t, video.Files())
	assert.Equal(t, vo.VideoStateToTranscode, video.State())
	assert.True(t, f.store.Exists(f.store.InputPath(testVideoUUID, video.InputFilename())))
	assert.Equal(t, 1, planner.calls)
}

func TestBaseHandler_CleanupToleratesMissingStaging(t *testing.T) {
	f := newHandlerFixture(t, vo.VideoStateToTranscode)
	h := NewWebVideoHandler(f.deps)

	job, err := h.Create(context.Background(), service.CreateJobParams{Video: f.video, Resolution: 360, FPS: 30})
	require.NoError(t, err)
	require.NoError(t, h.OnAbort(context.Background(), job))

	f.stage(t, job, "partial.mp4", "x")
	require.NoError(t, h.OnCancel(context.Background(), job, true))
	assert.False(t, f.store.Exists(f.store.StagingDir(job.JobUUID())))
}

func TestBuildMasterPlaylist_HighestFirst(t *testing.T) {
	playlist := string(buildMasterPlaylist([]vo.VideoFile{
		{Kind: vo.VideoFileKindHLS, Resolution: 0, PlaylistFilename: "0.m3u8"},
		{Kind: vo.VideoFileKindHLS, Resolution: 480, FPS: 30, PlaylistFilename: "480.m3u8"},
		{Kind: vo.VideoFileKindWebVideo, Resolution: 1080},
		{Kind: vo.VideoFileKindHLS, Resolution: 1080, FPS: 60, PlaylistFilename: "1080.m3u8"},
	}))

	assert.Less(t, indexOf(playlist, "1080.m3u8"), indexOf(playlist, "480.m3u8"))
	assert.Less(t, indexOf(playlist, "480.m3u8"), indexOf(playlist, "0.m3u8"))
	assert.Contains(t, playlist, "CODECS=\"mp4a.40.2\"\n0.m3u8")
	assert.Contains(t, playlist, "RESOLUTION=1920x1080,FRAME-RATE=60")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestRewritePlaylist(t *testing.T) {
	assert.Equal(t, "seg final.mp4", string(rewritePlaylist([]byte("seg staged.mp4"), "staged.mp4", "final.mp4")))
	assert.Equal(t, "same", string(rewritePlaylist([]byte("same"), "", "final.mp4")))
}
