package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/afero"

	"transcode-orchestrator/ddd/domain/gateway"
)

// LocalFileStore keeps rendition outputs, inputs and runner uploads on a local (or in-memory) afero filesystem.
//
// Layout:
//
//	<root>/<videoUUID>/<videoUUID>-<res>.mp4
//	<root>/<videoUUID>/hls/<videoUUID>-<res>-fragmented.mp4
//	<root>/<videoUUID>/hls/<res>.m3u8
//	<root>/<videoUUID>/hls/master.m3u8
//	<inputRoot>/<videoUUID>/<filename>
//	<stagingRoot>/<jobUUID>/<filename>
type LocalFileStore struct {
	fs          afero.Fs
	root        string
	inputRoot   string
	stagingRoot string
}

// NewLocalFileStore builds a store rooted at the given directories.
func NewLocalFileStore(fs afero.Fs, root, inputRoot, stagingRoot string) *LocalFileStore {
	return &LocalFileStore{
		fs:          fs,
		root:        filepath.Clean(root),
		inputRoot:   filepath.Clean(inputRoot),
		stagingRoot: filepath.Clean(stagingRoot),
	}
}

var _ gateway.MediaFileStore = (*LocalFileStore)(nil)

func (s *LocalFileStore) VideoDir(videoUUID string) string {
	return filepath.Join(s.root, videoUUID)
}

func (s *LocalFileStore) WebVideoPath(videoUUID string, resolution int) string {
	return filepath.Join(s.VideoDir(videoUUID), videoUUID+"-"+strconv.Itoa(resolution)+".mp4")
}

func (s *LocalFileStore) HLSFragmentedPath(videoUUID string, resolution int) string {
	return filepath.Join(s.VideoDir(videoUUID), "hls", videoUUID+"-"+strconv.Itoa(resolution)+"-fragmented.mp4")
}

func (s *LocalFileStore) HLSPlaylistPath(videoUUID string, resolution int) string {
	return filepath.Join(s.VideoDir(videoUUID), "hls", strconv.Itoa(resolution)+".m3u8")
}

func (s *LocalFileStore) MasterPlaylistPath(videoUUID string) string {
	return filepath.Join(s.VideoDir(videoUUID), "hls", "master.m3u8")
}

func (s *LocalFileStore) InputPath(videoUUID, filename string) string {
	return filepath.Join(s.inputRoot, videoUUID, filepath.Base(filename))
}

func (s *LocalFileStore) StagingDir(jobUUID string) string {
	return filepath.Join(s.stagingRoot, jobUUID)
}

func (s *LocalFileStore) StagingPath(jobUUID, filename string) string {
	return filepath.Join(s.StagingDir(jobUUID), filepath.Base(filename))
}

// Move renames src to dst, falling back to copy+remove across devices.
// A missing src with an existing dst is treated as an already completed move.
func (s *LocalFileStore) Move(src, dst string) error {
	if !s.Exists(src) {
		if s.Exists(dst) {
			return nil
		}
		return fmt.Errorf("move %s: %w", src, os.ErrNotExist)
	}
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := s.fs.Rename(src, dst); err == nil {
		return nil
	}
	if err := s.copyFile(src, dst); err != nil {
		return err
	}
	return s.fs.Remove(src)
}

func (s *LocalFileStore) copyFile(src, dst string) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = s.SaveStream(dst, in)
	return err
}

// WriteFile writes through a temporary file so readers never see a partial playlist.
func (s *LocalFileStore) WriteFile(path string, data []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, path)
}

func (s *LocalFileStore) SaveStream(path string, r io.Reader) (int64, error) {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := s.fs.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(path)
		return 0, err
	}
	return n, nil
}

func (s *LocalFileStore) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

func (s *LocalFileStore) Open(path string) (io.ReadCloser, os.FileInfo, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s is a directory", path)
	}
	return f, info, nil
}

func (s *LocalFileStore) Exists(path string) bool {
	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

func (s *LocalFileStore) Size(path string) (int64, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *LocalFileStore) RemoveAll(dir string) error {
	err := s.fs.RemoveAll(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ListFiles walks dir and returns regular files in lexical order.
func (s *LocalFileStore) ListFiles(dir string) ([]string, error) {
	var files []string
	err := afero.Walk(s.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && filepath.Ext(path) != ".tmp" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (s *LocalFileStore) LocalPath(path string) string {
	return path
}
