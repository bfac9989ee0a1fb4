package vo

// VideoState 视频发布状态
type VideoState string

const (
	VideoStateToTranscode                   VideoState = "to_transcode"
	VideoStateToMoveToExternalStorage       VideoState = "to_move_to_external_storage"
	VideoStatePublished                     VideoState = "published"
	VideoStateToImport                      VideoState = "to_import"
	VideoStateWaitingForLive                VideoState = "waiting_for_live"
	VideoStateLiveEnded                     VideoState = "live_ended"
	VideoStateToEdit                        VideoState = "to_edit"
	VideoStateTranscodingFailed             VideoState = "transcoding_failed"
	VideoStateToMoveToExternalStorageFailed VideoState = "to_move_to_external_storage_failed"
)

// IsValid 检查状态是否有效
func (s VideoState) IsValid() bool {
	switch s {
	case VideoStateToTranscode, VideoStateToMoveToExternalStorage, VideoStatePublished,
		VideoStateToImport, VideoStateWaitingForLive, VideoStateLiveEnded, VideoStateToEdit,
		VideoStateTranscodingFailed, VideoStateToMoveToExternalStorageFailed:
		return true
	default:
		return false
	}
}

func (s VideoState) String() string {
	return string(s)
}

// IsAlternateEntry 可重新进入转码流程的状态
func (s VideoState) IsAlternateEntry() bool {
	return s == VideoStateToImport || s == VideoStateLiveEnded || s == VideoStateToEdit
}

// IsFailed 终态失败
func (s VideoState) IsFailed() bool {
	return s == VideoStateTranscodingFailed || s == VideoStateToMoveToExternalStorageFailed
}

// IsPastExternalStorage 是否已经越过外部存储迁移阶段
func (s VideoState) IsPastExternalStorage() bool {
	return s == VideoStateToMoveToExternalStorage || s == VideoStatePublished
}
