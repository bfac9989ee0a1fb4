package storage

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore() *LocalFileStore {
	return NewLocalFileStore(afero.NewMemMapFs(), "/data/videos/", "/data/inputs", "/data/staging")
}

func TestLocalFileStore_Layout(t *testing.T) {
	s := newMemStore()

	assert.Equal(t, "/data/videos/v1/v1-720.mp4", s.WebVideoPath("v1", 720))
	assert.Equal(t, "/data/videos/v1/hls/v1-0-fragmented.mp4", s.HLSFragmentedPath("v1", 0))
	assert.Equal(t, "/data/videos/v1/hls/480.m3u8", s.HLSPlaylistPath("v1", 480))
	assert.Equal(t, "/data/videos/v1/hls/master.m3u8", s.MasterPlaylistPath("v1"))
	assert.Equal(t, "/data/inputs/v1/source.mkv", s.InputPath("v1", "../../etc/source.mkv"))
	assert.Equal(t, "/data/staging/job-1/out.mp4", s.StagingPath("job-1", "/tmp/out.mp4"))
}

func TestLocalFileStore_MoveIsRepeatable(t *testing.T) {
	s := newMemStore()
	src := s.StagingPath("job-1", "out.mp4")
	dst := s.WebVideoPath("v1", 720)
	require.NoError(t, s.WriteFile(src, []byte("payload")))

	require.NoError(t, s.Move(src, dst))
	assert.False(t, s.Exists(src))
	data, err := s.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, s.Move(src, dst), "second move after success is a no-op")

	err = s.Move(s.StagingPath("job-2", "missing.mp4"), s.WebVideoPath("v2", 720))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalFileStore_SaveStreamAndOpen(t *testing.T) {
	s := newMemStore()
	path := s.InputPath("v1", "source.mp4")

	n, err := s.SaveStream(path, strings.NewReader("0123456789"))
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)

	size, err := s.Size(path)
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)

	rc, info, err := s.Open(path)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "source.mp4", info.Name())
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(body))

	_, _, err = s.Open(s.VideoDir("v1"))
	assert.Error(t, err)
	_, _, err = s.Open(s.InputPath("v1", "nope.mp4"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalFileStore_ListAndRemove(t *testing.T) {
	s := newMemStore()
	require.NoError(t, s.WriteFile(s.HLSPlaylistPath("v1", 720), []byte("#EXTM3U")))
	require.NoError(t, s.WriteFile(s.WebVideoPath("v1", 360), []byte("mp4")))

	files, err := s.ListFiles(s.VideoDir("v1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/videos/v1/hls/720.m3u8", "/data/videos/v1/v1-360.mp4"}, files)

	missing, err := s.ListFiles(s.VideoDir("v2"))
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, s.RemoveAll(s.VideoDir("v1")))
	require.NoError(t, s.RemoveAll(s.VideoDir("v1")))
	assert.False(t, s.Exists(s.WebVideoPath("v1", 360)))
}
