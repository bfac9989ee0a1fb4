package entity

import (
	"time"

	"transcode-orchestrator/ddd/domain/vo"
)

// Video 由外部目录服务拥有的视频，编排引擎只读写其中状态、时长与文件列表
type Video struct {
	videoUUID     string
	state         vo.VideoState
	duration      float64
	inputFilename string
	previewFile   string
	files         []vo.VideoFile
	updatedAt     time.Time
}

// RestoreVideo 从持久化数据还原
func RestoreVideo(videoUUID string, state vo.VideoState, duration float64, inputFilename, previewFile string, files []vo.VideoFile, updatedAt time.Time) *Video {
	return &Video{
		videoUUID:     videoUUID,
		state:         state,
		duration:      duration,
		inputFilename: inputFilename,
		previewFile:   previewFile,
		files:         files,
		updatedAt:     updatedAt,
	}
}

func (v *Video) VideoUUID() string     { return v.videoUUID }
func (v *Video) State() vo.VideoState  { return v.state }
func (v *Video) Duration() float64     { return v.duration }
func (v *Video) InputFilename() string { return v.inputFilename }
func (v *Video) PreviewFile() string   { return v.previewFile }
func (v *Video) UpdatedAt() time.Time  { return v.updatedAt }

// Files 返回文件列表副本
func (v *Video) Files() []vo.VideoFile {
	out := make([]vo.VideoFile, len(v.files))
	copy(out, v.files)
	return out
}

// HasFiles 是否已经产出过任何清晰度
func (v *Video) HasFiles() bool {
	return len(v.files) > 0
}

// FilesOfKind 按类型过滤
func (v *Video) FilesOfKind(kind vo.VideoFileKind) []vo.VideoFile {
	var out []vo.VideoFile
	for _, f := range v.files {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// UpsertFile 写入一个清晰度文件，同类型同清晰度覆盖旧记录
func (v *Video) UpsertFile(file vo.VideoFile) {
	for i, f := range v.files {
		if f.SameRendition(file) {
			v.files[i] = file
			return
		}
	}
	v.files = append(v.files, file)
}

// ResetFiles 剪辑完成后清空旧文件
func (v *Video) ResetFiles() {
	v.files = nil
}

// SetDuration 写回探测到的时长
func (v *Video) SetDuration(d float64) {
	if d > 0 {
		v.duration = d
	}
}

// ReplaceInput 替换源文件
func (v *Video) ReplaceInput(filename string) {
	v.inputFilename = filename
}

// JobInfo 单个视频的未完成任务计数
type JobInfo struct {
	VideoUUID        string
	PendingTranscode int
	PendingMove      int
}

// Pending 按计数器类型取值
func (i *JobInfo) Pending(counter vo.JobInfoCounter) int {
	if i == nil {
		return 0
	}
	switch counter {
	case vo.CounterPendingTranscode:
		return i.PendingTranscode
	case vo.CounterPendingMove:
		return i.PendingMove
	default:
		return 0
	}
}
