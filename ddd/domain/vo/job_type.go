package vo

// JobType runner job 类型
type JobType string

const (
	JobTypeWebVideoTranscoding   JobType = "vod-web-video-transcoding"
	JobTypeHLSTranscoding        JobType = "vod-hls-transcoding"
	JobTypeAudioMergeTranscoding JobType = "vod-audio-merge-transcoding"
	JobTypeLiveTranscoding       JobType = "live-rtmp-hls-transcoding"
	JobTypeStudioEditTranscoding JobType = "video-studio-transcoding"
)

// AllJobTypes 所有 job 类型
func AllJobTypes() []JobType {
	return []JobType{
		JobTypeWebVideoTranscoding,
		JobTypeHLSTranscoding,
		JobTypeAudioMergeTranscoding,
		JobTypeLiveTranscoding,
		JobTypeStudioEditTranscoding,
	}
}

// IsValid 检查类型是否有效
func (t JobType) IsValid() bool {
	for _, known := range AllJobTypes() {
		if t == known {
			return true
		}
	}
	return false
}

func (t JobType) String() string {
	return string(t)
}

// TranscodeKind 阶梯计算的场景
type TranscodeKind string

const (
	TranscodeKindVOD  TranscodeKind = "vod"
	TranscodeKindLive TranscodeKind = "live"
)

// JobInfoCounter 资产上的待完成计数器
type JobInfoCounter string

const (
	CounterNone             JobInfoCounter = ""
	CounterPendingTranscode JobInfoCounter = "pending_transcode"
	CounterPendingMove      JobInfoCounter = "pending_move"
)

func (c JobInfoCounter) IsValid() bool {
	return c == CounterPendingTranscode || c == CounterPendingMove
}

func (c JobInfoCounter) String() string {
	return string(c)
}
