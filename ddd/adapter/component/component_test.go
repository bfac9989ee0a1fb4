package component

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcode-orchestrator/ddd/application/app"
	"transcode-orchestrator/ddd/application/cqe"
	"transcode-orchestrator/ddd/application/dto"
)

type fakeVideoApp struct {
	app.VideoApp
	requests []*cqe.TranscodeVideoReq
	err      error
}

func (f *fakeVideoApp) Transcode(_ context.Context, req *cqe.TranscodeVideoReq) (*dto.CreatedJobsDTO, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.CreatedJobsDTO{VideoUUID: req.VideoUUID}, nil
}

func TestHandleAssetIngested(t *testing.T) {
	videos := &fakeVideoApp{}

	err := handleAssetIngested(context.Background(), videos, kafkago.Message{Value: []byte(`{"videoUUID":"v-1","priority":7}`)})
	require.NoError(t, err)
	require.Len(t, videos.requests, 1)
	assert.Equal(t, "v-1", videos.requests[0].VideoUUID)
	assert.Equal(t, 7, videos.requests[0].Priority)
}

func TestHandleAssetIngested_DecodeErrors(t *testing.T) {
	videos := &fakeVideoApp{}

	err := handleAssetIngested(context.Background(), videos, kafkago.Message{Value: []byte(`not-json`)})
	assert.ErrorIs(t, err, errDecode)

	err = handleAssetIngested(context.Background(), videos, kafkago.Message{Value: []byte(`{"priority":1}`)})
	assert.ErrorIs(t, err, errDecode)
	assert.Empty(t, videos.requests)
}

func TestHandleAssetIngested_ProcessErrorIsNotDecodeError(t *testing.T) {
	videos := &fakeVideoApp{err: errors.New("probe failed")}

	err := handleAssetIngested(context.Background(), videos, kafkago.Message{Value: []byte(`{"videoUUID":"v-2"}`)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, errDecode)
}

type countingMaintenance struct {
	runs atomic.Int32
}

func (m *countingMaintenance) SweepStaleJobs(context.Context) (int, error) {
	m.runs.Add(1)
	return 0, nil
}

func TestStaleJobSweeper_RunsPeriodically(t *testing.T) {
	maintenance := &countingMaintenance{}
	sweeper := NewStaleJobSweeper(maintenance, 10*time.Millisecond)
	assert.Equal(t, "staleJobSweeper", sweeper.GetName())

	require.NoError(t, sweeper.Start())
	assert.Eventually(t, func() bool { return maintenance.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, sweeper.Stop())
}
