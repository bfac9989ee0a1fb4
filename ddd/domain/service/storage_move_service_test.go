package service_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/storage"
	"transcode-orchestrator/internal/testutil"
)

type memBucket struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	failKey string
}

func newMemBucket() *memBucket {
	return &memBucket{objects: map[string]string{}, types: map[string]string{}}
}

func (b *memBucket) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	if key == b.failKey {
		return "", errors.New("access denied")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = string(data)
	b.types[key] = contentType
	return key, nil
}

func (b *memBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func newMoveFixture(t *testing.T) (*fixture, *storage.LocalFileStore, *memBucket, service.StorageMoveService) {
	t.Helper()
	f := newFixture(t)
	testutil.SeedVideo(t, f.db, videoUUID, vo.VideoStateToMoveToExternalStorage, "input.mp4")
	_, err := f.infos.Increase(context.Background(), videoUUID, vo.CounterPendingMove)
	require.NoError(t, err)

	store := storage.NewLocalFileStore(afero.NewMemMapFs(), "/data/videos", "/data/inputs", "/data/staging")
	require.NoError(t, store.WriteFile(store.WebVideoPath(videoUUID, 720), []byte("mp4")))
	require.NoError(t, store.WriteFile(store.HLSPlaylistPath(videoUUID, 720), []byte("#EXTM3U")))

	bucket := newMemBucket()
	move := service.NewStorageMoveService(f.videos, f.infos, store, bucket, f.publication,
		service.StorageMoveOptions{KeyPrefix: "media", Concurrency: 2})
	return f, store, bucket, move
}

func TestMoveVideo_UploadsAndPublishes(t *testing.T) {
	f, _, bucket, move := newMoveFixture(t)

	require.NoError(t, move.MoveVideo(context.Background(), videoUUID))
	assert.Equal(t, []string{
		"media/" + videoUUID + "/" + videoUUID + "-720.mp4",
		"media/" + videoUUID + "/hls/720.m3u8",
	}, bucket.keys())
	assert.Equal(t, "application/vnd.apple.mpegurl", bucket.types["media/"+videoUUID+"/hls/720.m3u8"])
	assert.Equal(t, vo.VideoStatePublished, testutil.VideoState(t, f.db, videoUUID))

	info, err := f.infos.Get(context.Background(), videoUUID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.PendingMove)
}

func TestMoveVideo_UploadFailureMarksFailed(t *testing.T) {
	f, _, bucket, move := newMoveFixture(t)
	bucket.failKey = "media/" + videoUUID + "/hls/720.m3u8"

	err := move.MoveVideo(context.Background(), videoUUID)
	assert.Error(t, err)
	assert.Equal(t, vo.VideoStateToMoveToExternalStorageFailed, testutil.VideoState(t, f.db, videoUUID))

	info, err := f.infos.Get(context.Background(), videoUUID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.PendingMove)
}

func TestMoveVideo_SkipsVideoInOtherState(t *testing.T) {
	f, _, bucket, move := newMoveFixture(t)
	_, err := f.videos.UpdateStateIf(context.Background(), videoUUID,
		[]vo.VideoState{vo.VideoStateToMoveToExternalStorage}, vo.VideoStatePublished)
	require.NoError(t, err)

	require.NoError(t, move.MoveVideo(context.Background(), videoUUID))
	assert.Empty(t, bucket.keys())
}
