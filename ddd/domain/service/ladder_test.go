package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcode-orchestrator/ddd/domain/vo"
)

func enabled(resolutions ...int) map[int]bool {
	m := make(map[int]bool, len(resolutions))
	for _, r := range resolutions {
		m[r] = true
	}
	return m
}

func TestComputeResolutions_StrictLower(t *testing.T) {
	l := NewLadder(enabled(360, 480, 720), nil)

	got := l.ComputeResolutions(1080, vo.TranscodeKindVOD, false, true, true)
	assert.Equal(t, []int{360, 480, 720}, got)

	got = l.ComputeResolutions(720, vo.TranscodeKindVOD, false, true, true)
	assert.Equal(t, []int{360, 480}, got, "input equal to a candidate is excluded under strictLower")

	got = l.ComputeResolutions(720, vo.TranscodeKindVOD, false, false, true)
	assert.Equal(t, []int{360, 480, 720}, got)
}

func TestComputeResolutions_AudioOnlyNeedsAudio(t *testing.T) {
	l := NewLadder(enabled(0, 360, 480), nil)

	for _, strict := range []bool{true, false} {
		for _, includeInput := range []bool{true, false} {
			got := l.ComputeResolutions(1080, vo.TranscodeKindVOD, includeInput, strict, false)
			assert.NotContains(t, got, 0)
		}
	}

	got := l.ComputeResolutions(1080, vo.TranscodeKindVOD, false, true, true)
	assert.Equal(t, []int{0, 360, 480}, got)
}

func TestComputeResolutions_NoCandidates(t *testing.T) {
	l := NewLadder(nil, nil)

	assert.Empty(t, l.ComputeResolutions(1080, vo.TranscodeKindVOD, false, true, true))
	assert.Equal(t, 1080, l.MainResolution(1081))
}

func TestComputeResolutions_IncludeInputDeduplicates(t *testing.T) {
	l := NewLadder(enabled(480, 720), nil)

	assert.Equal(t, []int{480, 720}, l.ComputeResolutions(721, vo.TranscodeKindVOD, true, false, false))
	assert.Equal(t, []int{480, 720, 1000}, l.ComputeResolutions(1001, vo.TranscodeKindVOD, true, true, false))
}

func TestComputeResolutions_LiveUsesLiveSet(t *testing.T) {
	l := NewLadder(enabled(360, 480, 720), enabled(240))

	assert.Equal(t, []int{240}, l.ComputeResolutions(1080, vo.TranscodeKindLive, false, true, true))
}

func TestMainResolution(t *testing.T) {
	l := NewLadder(enabled(0, 360, 480, 720), nil)

	assert.Equal(t, 720, l.MainResolution(1080))
	assert.Equal(t, 480, l.MainResolution(600))
	assert.Equal(t, 300, l.MainResolution(301))
}

func TestComputeOutputFps(t *testing.T) {
	cases := []struct {
		name       string
		fps        float64
		resolution int
		want       int
	}{
		{"low resolution snaps to standard", 50, 480, 30},
		{"hd keeps origin", 50, 1080, 50},
		{"above max snaps to hd", 120, 1080, 60},
		{"above max at low resolution", 120, 480, 30},
		{"ntsc rounds", 29.97, 1080, 30},
		{"standard rate untouched", 25, 360, 25},
		{"high ntsc at low resolution", 59.94, 480, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeOutputFps(tc.fps, tc.resolution)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeOutputFps_Invalid(t *testing.T) {
	_, err := ComputeOutputFps(0, 480)
	assert.ErrorIs(t, err, ErrInvalidFps)

	_, err = ComputeOutputFps(0.2, 1080)
	assert.ErrorIs(t, err, ErrInvalidFps)
}

func TestRoundToEven(t *testing.T) {
	assert.Equal(t, 1080, RoundToEven(1080))
	assert.Equal(t, 1080, RoundToEven(1081))
	assert.Equal(t, 0, RoundToEven(1))
}
