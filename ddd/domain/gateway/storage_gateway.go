package gateway

import (
	"context"
	"io"
	"os"
)

// ExternalStorage 外部对象存储网关
type ExternalStorage interface {
	// Upload 上传一个对象，返回可访问的对象路径
	Upload(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) (string, error)
}

// MediaFileStore 本地媒体文件存储。
// 所有路径都只由视频UUID与jobUUID推导，不同视频的 handler 不会互相覆盖。
type MediaFileStore interface {
	// VideoDir 视频文件目录
	VideoDir(videoUUID string) string
	// WebVideoPath web-video 清晰度文件路径
	WebVideoPath(videoUUID string, resolution int) string
	// HLSFragmentedPath HLS fragmented mp4 路径
	HLSFragmentedPath(videoUUID string, resolution int) string
	// HLSPlaylistPath HLS 子播放列表路径
	HLSPlaylistPath(videoUUID string, resolution int) string
	// MasterPlaylistPath HLS 主播放列表路径
	MasterPlaylistPath(videoUUID string) string
	// InputPath 源文件路径
	InputPath(videoUUID, filename string) string
	// StagingDir runner 上传结果的暂存目录
	StagingDir(jobUUID string) string
	// StagingPath 暂存目录内的文件
	StagingPath(jobUUID, filename string) string

	// Move 移动文件；源文件不存在但目标已存在时视为已完成
	Move(src, dst string) error
	// WriteFile 原子写入文件
	WriteFile(path string, data []byte) error
	// SaveStream 把上传流写入文件
	SaveStream(path string, r io.Reader) (int64, error)
	// ReadFile 读取文件
	ReadFile(path string) ([]byte, error)
	// Open 打开文件读取
	Open(path string) (io.ReadCloser, os.FileInfo, error)
	// Exists 文件是否存在
	Exists(path string) bool
	// Size 文件大小
	Size(path string) (int64, error)
	// RemoveAll 删除目录，目录不存在不报错
	RemoveAll(dir string) error
	// ListFiles 列出目录下的普通文件（递归）
	ListFiles(dir string) ([]string, error)
	// LocalPath 返回探测工具可读取的路径
	LocalPath(path string) string
}
