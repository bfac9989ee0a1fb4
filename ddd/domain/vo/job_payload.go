package vo

import (
	"encoding/json"
	"fmt"
)

// TranscodeOutput 单个输出规格
type TranscodeOutput struct {
	Resolution int `json:"resolution"`
	FPS        int `json:"fps"`
}

// WebVideoTranscodingPayload 发给 runner 的 web-video 转码参数
type WebVideoTranscodingPayload struct {
	Input struct {
		VideoFileURL string `json:"videoFileUrl"`
	} `json:"input"`
	Output TranscodeOutput `json:"output"`
}

// HLSTranscodingPayload HLS 转码参数
type HLSTranscodingPayload struct {
	Input struct {
		VideoFileURL string `json:"videoFileUrl"`
	} `json:"input"`
	Output struct {
		TranscodeOutput
		AudioOnly bool `json:"audioOnly"`
	} `json:"output"`
}

// AudioMergeTranscodingPayload 静态图片 + 音频合成参数
type AudioMergeTranscodingPayload struct {
	Input struct {
		AudioFileURL   string `json:"audioFileUrl"`
		PreviewFileURL string `json:"previewFileUrl"`
	} `json:"input"`
	Output TranscodeOutput `json:"output"`
}

// LiveTranscodingPayload 直播转码参数
type LiveTranscodingPayload struct {
	Input struct {
		RTMPURL string `json:"rtmpUrl"`
	} `json:"input"`
	Output struct {
		ToTranscode     []TranscodeOutput `json:"toTranscode"`
		SegmentDuration int               `json:"segmentDuration"`
		SegmentListSize int               `json:"segmentListSize"`
	} `json:"output"`
}

// StudioTask 剪辑任务
type StudioTask struct {
	Name    string                 `json:"name"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// StudioEditTranscodingPayload 剪辑参数
type StudioEditTranscodingPayload struct {
	Input struct {
		VideoFileURL string `json:"videoFileUrl"`
	} `json:"input"`
	Tasks []StudioTask `json:"tasks"`
}

// JobPrivatePayload 仅服务端可见的参数，不下发给 runner
type JobPrivatePayload struct {
	VideoUUID  string `json:"videoUUID"`
	IsMainJob  bool   `json:"isMainJob,omitempty"`
	Resolution int    `json:"resolution,omitempty"`
	FPS        int    `json:"fps,omitempty"`
	AudioOnly  bool   `json:"audioOnly,omitempty"`
}

// JobResultPayload runner 上报成功时携带的结果
type JobResultPayload struct {
	VideoFile              string `json:"videoFile,omitempty"`
	ResolutionPlaylistFile string `json:"resolutionPlaylistFile,omitempty"`
}

// EncodePayload 序列化 payload
func EncodePayload(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("{}"), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}

// DecodePayload 反序列化 payload
func DecodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
