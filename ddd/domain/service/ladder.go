package service

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"transcode-orchestrator/ddd/domain/vo"
)

// ErrInvalidFps 输入帧率低于允许的最小值
var ErrInvalidFps = errors.New("invalid fps")

const (
	// AudioOnlyResolution 仅音频的特殊清晰度
	AudioOnlyResolution = 0

	keepOriginFpsResolutionMin = 720
	averageFps                 = 30
	maxFps                     = 60
	minFps                     = 1
)

var (
	// CandidateResolutions 可配置的全部候选清晰度，升序
	CandidateResolutions = []int{AudioOnlyResolution, 144, 240, 360, 480, 720, 1080, 1440, 2160}

	standardFps   = []int{24, 25, 30}
	hdStandardFps = []int{50, 60}
)

// Ladder 根据配置计算转码阶梯，无状态、无 I/O
type Ladder struct {
	vod  map[int]bool
	live map[int]bool
}

// NewLadder 创建阶梯计算器，参数为启用的清晰度集合
func NewLadder(vod, live map[int]bool) *Ladder {
	return &Ladder{vod: copyEnabled(vod), live: copyEnabled(live)}
}

func copyEnabled(in map[int]bool) map[int]bool {
	out := make(map[int]bool, len(in))
	for k, v := range in {
		if v {
			out[k] = true
		}
	}
	return out
}

func (l *Ladder) enabled(kind vo.TranscodeKind) map[int]bool {
	if kind == vo.TranscodeKindLive {
		return l.live
	}
	return l.vod
}

// ComputeResolutions 计算需要转码的清晰度，升序去重
func (l *Ladder) ComputeResolutions(input int, kind vo.TranscodeKind, includeInput, strictLower, hasAudio bool) []int {
	enabled := l.enabled(kind)
	seen := make(map[int]struct{})
	out := make([]int, 0, len(CandidateResolutions)+1)
	add := func(r int) {
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}

	for _, candidate := range CandidateResolutions {
		if !enabled[candidate] {
			continue
		}
		if candidate == AudioOnlyResolution && !hasAudio {
			continue
		}
		if strictLower && input <= candidate {
			continue
		}
		if !strictLower && input < candidate {
			continue
		}
		add(candidate)
	}

	if includeInput {
		add(RoundToEven(input))
	}

	sort.Ints(out)
	return out
}

// MainResolution 主任务的输出清晰度：不超过输入的最高启用清晰度，没有可用候选时取输入取偶
func (l *Ladder) MainResolution(input int) int {
	resolutions := l.ComputeResolutions(input, vo.TranscodeKindVOD, false, false, false)
	if len(resolutions) == 0 {
		return RoundToEven(input)
	}
	return resolutions[len(resolutions)-1]
}

// ComputeOutputFps 计算输出帧率。
// 低于 720p 且高于 30fps 时收敛到 24/25/30；仍高于 60fps 时收敛到 50/60。
func ComputeOutputFps(inputFps float64, resolution int) (int, error) {
	fps := inputFps
	if math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFps, inputFps)
	}

	if resolution < keepOriginFpsResolutionMin && fps > averageFps {
		fps = float64(closestStandardFps(fps, standardFps))
	}
	if fps > maxFps {
		fps = float64(closestStandardFps(fps, hdStandardFps))
	}

	out := int(math.Round(fps))
	if out < minFps {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFps, inputFps)
	}
	return out, nil
}

// closestStandardFps 取距离最近的标准帧率，距离相同取余数最小者
func closestStandardFps(fps float64, standards []int) int {
	best := standards[0]
	bestDist := math.Abs(fps - float64(best))
	bestRem := math.Mod(fps, float64(best))
	for _, s := range standards[1:] {
		dist := math.Abs(fps - float64(s))
		rem := math.Mod(fps, float64(s))
		if dist < bestDist || (dist == bestDist && rem < bestRem) {
			best, bestDist, bestRem = s, dist, rem
		}
	}
	return best
}

// RoundToEven 向下取偶
func RoundToEven(n int) int {
	if n%2 == 0 {
		return n
	}
	return n - 1
}
