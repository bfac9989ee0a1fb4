package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/ddd/domain/vo"
)

// FFprobeExecutor 调用 ffprobe 读取媒体信息
type FFprobeExecutor struct {
	binary  string
	timeout time.Duration
}

// NewFFprobeExecutor 创建探测器
func NewFFprobeExecutor(binary string, timeout time.Duration) *FFprobeExecutor {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobeExecutor{binary: binary, timeout: timeout}
}

var _ gateway.MediaProbe = (*FFprobeExecutor)(nil)

type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Disposition  struct {
			AttachedPic int `json:"attached_pic"`
		} `json:"disposition"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe 读取时长、首个视频流与音频流信息
func (e *FFprobeExecutor) Probe(ctx context.Context, path string) (*vo.StreamMetadata, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.binary,
		"-v", "error",
		"-probesize", "5M",
		"-analyzeduration", "5M",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) (*vo.StreamMetadata, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	meta := &vo.StreamMetadata{}
	if d, err := strconv.ParseFloat(strings.TrimSpace(raw.Format.Duration), 64); err == nil {
		meta.Duration = d
	}
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			// 封面图不算视频流
			if meta.HasVideo || s.Disposition.AttachedPic == 1 {
				continue
			}
			meta.HasVideo = true
			meta.VideoCodec = s.CodecName
			meta.Width = s.Width
			meta.Height = s.Height
			meta.FPS = parseFrameRate(s.AvgFrameRate)
			if meta.FPS <= 0 {
				meta.FPS = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			if meta.HasAudio {
				continue
			}
			meta.HasAudio = true
			meta.AudioCodec = s.CodecName
		}
	}
	return meta, nil
}

// parseFrameRate 解析 "30000/1001" 或 "25" 形式的帧率
func parseFrameRate(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	num, den, ok := strings.Cut(v, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
