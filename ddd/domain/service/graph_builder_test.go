package service_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/storage"
	"transcode-orchestrator/internal/testutil"
)

type stubProbe struct {
	meta  *vo.StreamMetadata
	err   error
	paths []string
}

func (p *stubProbe) Probe(_ context.Context, path string) (*vo.StreamMetadata, error) {
	p.paths = append(p.paths, path)
	return p.meta, p.err
}

type graphFixture struct {
	*fixture
	probe   *stubProbe
	web     *recordingHandler
	hls     *recordingHandler
	audio   *recordingHandler
	studio  *recordingHandler
	live    *recordingHandler
	builder service.GraphBuilder
}

func newGraphFixture(t *testing.T, opts service.GraphBuilderOptions, vod, live map[int]bool) *graphFixture {
	t.Helper()
	g := &graphFixture{
		probe:  &stubProbe{},
		web:    newRecordingHandler(vo.JobTypeWebVideoTranscoding, vo.CounterPendingTranscode, true),
		hls:    newRecordingHandler(vo.JobTypeHLSTranscoding, vo.CounterPendingTranscode, true),
		audio:  newRecordingHandler(vo.JobTypeAudioMergeTranscoding, vo.CounterPendingTranscode, true),
		studio: newRecordingHandler(vo.JobTypeStudioEditTranscoding, vo.CounterPendingTranscode, true),
		live:   newRecordingHandler(vo.JobTypeLiveTranscoding, vo.CounterNone, false),
	}
	g.fixture = newFixture(t, g.web, g.hls, g.audio, g.studio, g.live)
	store := storage.NewLocalFileStore(afero.NewMemMapFs(), "/data/videos", "/data/inputs", "/data/staging")
	g.builder = service.NewGraphBuilder(g.videos, g.probe, store, service.NewLadder(vod, live), g.registry, g.publication, opts)
	return g
}

func resolutionSet(rs ...int) map[int]bool {
	m := make(map[int]bool, len(rs))
	for _, r := range rs {
		m[r] = true
	}
	return m
}

type plannedRendition struct {
	Resolution int
	FPS        int
	Main       bool
	AudioOnly  bool
}

func renditions(params []service.CreateJobParams) []plannedRendition {
	out := make([]plannedRendition, 0, len(params))
	for _, p := range params {
		out = append(out, plannedRendition{Resolution: p.Resolution, FPS: p.FPS, Main: p.IsMainJob, AudioOnly: p.AudioOnly})
	}
	return out
}

func TestBuildForVideo_WebVideoAndHLSLadder(t *testing.T) {
	g := newGraphFixture(t, service.GraphBuilderOptions{WebVideosEnabled: true, HLSEnabled: true, BasePriority: 100},
		resolutionSet(0, 360, 720, 1080), nil)
	testutil.SeedVideo(t, g.db, videoUUID, vo.VideoStateToTranscode, "input.mp4")
	g.probe.meta = &vo.StreamMetadata{Width: 1920, Height: 1080, FPS: 50, HasVideo: true, HasAudio: true}

	jobs, err := g.builder.BuildForVideo(context.Background(), videoUUID, service.BuildOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 7)
	assert.Equal(t, []string{"/data/inputs/" + videoUUID + "/input.mp4"}, g.probe.paths)

	main := jobs[0]
	assert.Equal(t, vo.JobTypeWebVideoTranscoding, main.Type())
	assert.Equal(t, vo.JobStatePending, main.State())
	assert.Equal(t, 100, main.Priority())
	for _, child := range jobs[1:] {
		assert.Equal(t, main.JobUUID(), child.DependsOnUUID())
		assert.Equal(t, vo.JobStateWaitingForParent, child.State())
		assert.Equal(t, 101, child.Priority())
	}

	assert.Equal(t, []plannedRendition{
		{Resolution: 1080, FPS: 50, Main: true},
		{Resolution: 360, FPS: 30},
		{Resolution: 720, FPS: 50},
	}, renditions(g.web.createdParams()))
	assert.Equal(t, []plannedRendition{
		{Resolution: 1080, FPS: 50},
		{Resolution: 0, AudioOnly: true},
		{Resolution: 360, FPS: 30},
		{Resolution: 720, FPS: 50},
	}, renditions(g.hls.createdParams()))

	info, err := g.infos.Get(context.Background(), videoUUID)
	require.NoError(t, err)
	assert.Equal(t, 7, info.PendingTranscode)
}

func TestBuildForVideo_HLSOnlyMainJob(t *testing.T) {
	g := newGraphFixture(t, service.GraphBuilderOptions{HLSEnabled: true}, resolutionSet(480, 720), nil)
	testutil.SeedVideo(t, g.db, videoUUID, vo.VideoStateToTranscode, "input.mp4")
	g.probe.meta = &vo.StreamMetadata{Width: 1280, Height: 720, FPS: 30, HasVideo: true}

	jobs, err := g.builder.BuildForVideo(context.Background(), videoUUID, service.BuildOptions{Priority: 7})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, vo.JobTypeHLSTranscoding, jobs[0].Type())
	assert.Equal(t, 7, jobs[0].Priority())
	assert.Empty(t, g.web.createdParams())
	assert.Equal(t, []plannedRendition{
		{Resolution: 720, FPS: 30, Main: true},
		{Resolution: 480, FPS: 30},
	}, renditions(g.hls.createdParams()))
}

func TestBuildForVideo_AudioOnlyInputMergesWithPreview(t *testing.T) {
	g := newGraphFixture(t, service.GraphBuilderOptions{WebVideosEnabled: true, HLSEnabled: true}, resolutionSet(0, 360), nil)
	testutil.SeedVideo(t, g.db, videoUUID, vo.VideoStateToTranscode, "input.mp3")
	g.probe.meta = &vo.StreamMetadata{HasAudio: true}

	jobs, err := g.builder.BuildForVideo(context.Background(), videoUUID, service.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, vo.JobTypeAudioMergeTranscoding, jobs[0].Type())
	assert.Equal(t, []plannedRendition{{Resolution: 480, FPS: 25, Main: true}}, renditions(g.audio.createdParams()))
	assert.Contains(t, renditions(g.hls.createdParams()), plannedRendition{Resolution: 480, FPS: 25})
}

func TestBuildForVideo_InvalidFpsCreatesNothing(t *testing.T) {
	g := newGraphFixture(t, service.GraphBuilderOptions{HLSEnabled: true}, resolutionSet(360, 720), nil)
	testutil.SeedVideo(t, g.db, videoUUID, vo.VideoStateToImport, "input.mp4")
	g.probe.meta = &vo.StreamMetadata{Width: 1280, Height: 720, FPS: 0.2, HasVideo: true}

	jobs, err := g.builder.BuildForVideo(context.Background(), videoUUID, service.BuildOptions{})
	assert.Nil(t, jobs)
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))
	assert.ErrorIs(t, err, service.ErrInvalidFps)

	assert.Empty(t, g.hls.createdParams())
	assert.Equal(t, vo.VideoStateToImport, testutil.VideoState(t, g.db, videoUUID))
}

func TestBuildForVideo_AlternateEntryMovesToTranscode(t *testing.T) {
	g := newGraphFixture(t, service.GraphBuilderOptions{HLSEnabled: true}, resolutionSet(360), nil)
	testutil.SeedVideo(t, g.db, videoUUID, vo.VideoStateLiveEnded, "replay.mp4")
	g.probe.meta = &vo.StreamMetadata{Width: 640, Height: 360, FPS: 25, HasVideo: true}

	_, err := g.builder.BuildForVideo(context.Background(), videoUUID, service.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, vo.VideoStateToTranscode, testutil.VideoState(t, g.db, videoUUID))
}

func TestBuildForVideo_RejectsPublishedVideo(t *testing.T) {
	g := newGraphFixture(t, service.GraphBuilderOptions{HLSEnabled: true}, resolutionSet(360), nil)
	testutil.SeedVideo(t, g.db, videoUUID, vo.VideoStatePublished, "input.mp4")

	_, err := g.builder.BuildForVideo(context.Background(), videoUUID, service.BuildOptions{})
	assert.ErrorIs(t, err, entity.ErrInvalidVideoState)
	assert.Empty(t, g.probe.paths)

	_, err = g.builder.BuildForVideo(context.Background(), "missing", service.BuildOptions{})
	assert.ErrorIs(t, err, entity.ErrVideoNotFound)
}

func TestPlanLive_UsesLiveLadder(t *testing.T) {
	g := newGraphFixture(t, service.GraphBuilderOptions{HLSEnabled: true}, nil, resolutionSet(360, 720))
	testutil.SeedVideo(t, g.db, videoUUID, vo.VideoStateWaitingForLive, "")

	job, err := g.builder.PlanLive(context.Background(), videoUUID, "rtmp://localhost/live/abc",
		service.LiveInput{Resolution: 1080, FPS: 60})
	require.NoError(t, err)
	assert.Equal(t, vo.JobTypeLiveTranscoding, job.Type())

	params := g.live.createdParams()
	require.Len(t, params, 1)
	assert.Equal(t, "rtmp://localhost/live/abc", params[0].RTMPURL)
	assert.Equal(t, []vo.TranscodeOutput{{Resolution: 360, FPS: 30}, {Resolution: 720, FPS: 60}}, params[0].Outputs)

	_, err = g.builder.PlanLive(context.Background(), videoUUID, "", service.LiveInput{Resolution: 720, FPS: 30})
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))
}

func TestPlanStudioEdit_RequiresTasksAndState(t *testing.T) {
	g := newGraphFixture(t, service.GraphBuilderOptions{HLSEnabled: true}, nil, nil)
	testutil.SeedVideo(t, g.db, videoUUID, vo.VideoStateToEdit, "input.mp4")

	_, err := g.builder.PlanStudioEdit(context.Background(), videoUUID, nil)
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))

	tasks := []vo.StudioTask{{Name: "cut", Options: map[string]interface{}{"start": 2}}}
	job, err := g.builder.PlanStudioEdit(context.Background(), videoUUID, tasks)
	require.NoError(t, err)
	assert.Equal(t, vo.JobTypeStudioEditTranscoding, job.Type())
	assert.Equal(t, tasks, g.studio.createdParams()[0].StudioTasks)
}
