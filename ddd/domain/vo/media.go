package vo

// StreamMetadata 媒体探测结果
type StreamMetadata struct {
	Duration   float64 `json:"duration"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	VideoCodec string  `json:"videoCodec"`
	AudioCodec string  `json:"audioCodec"`
	HasVideo   bool    `json:"hasVideo"`
	HasAudio   bool    `json:"hasAudio"`
}

// Resolution 以短边作为分辨率（竖屏视频同样适用）
func (m *StreamMetadata) Resolution() int {
	if m == nil || !m.HasVideo {
		return 0
	}
	if m.Width > 0 && m.Width < m.Height {
		return m.Width
	}
	return m.Height
}

// VideoFileKind 视频文件类型
type VideoFileKind string

const (
	VideoFileKindWebVideo VideoFileKind = "web-video"
	VideoFileKindHLS      VideoFileKind = "hls"
)

// VideoFile 已生成的一个清晰度文件
type VideoFile struct {
	Kind             VideoFileKind `json:"kind"`
	Resolution       int           `json:"resolution"`
	FPS              int           `json:"fps"`
	Filename         string        `json:"filename"`
	PlaylistFilename string        `json:"playlistFilename,omitempty"`
	Size             int64         `json:"size"`
}

// SameRendition 同一类型同一清晰度视为同一个文件，用于幂等写入
func (f VideoFile) SameRendition(o VideoFile) bool {
	return f.Kind == o.Kind && f.Resolution == o.Resolution
}
