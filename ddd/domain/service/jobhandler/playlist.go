package jobhandler

import (
	"fmt"
	"sort"
	"strings"

	"transcode-orchestrator/ddd/domain/vo"
)

// 各清晰度的估算码率（bps），用于 master playlist 的 BANDWIDTH
var estimatedBandwidth = map[int]int{
	0:    64_000,
	144:  200_000,
	240:  400_000,
	360:  800_000,
	480:  1_200_000,
	720:  2_500_000,
	1080: 5_000_000,
	1440: 10_000_000,
	2160: 20_000_000,
}

func bandwidthFor(resolution int) int {
	if bw, ok := estimatedBandwidth[resolution]; ok {
		return bw
	}
	best := 0
	for r, bw := range estimatedBandwidth {
		if r <= resolution && bw > best {
			best = bw
		}
	}
	if best == 0 {
		best = estimatedBandwidth[144]
	}
	return best
}

// buildMasterPlaylist 根据已记录的 HLS 文件生成 master playlist，高清晰度在前
func buildMasterPlaylist(files []vo.VideoFile) []byte {
	sorted := make([]vo.VideoFile, 0, len(files))
	for _, f := range files {
		if f.Kind == vo.VideoFileKindHLS && f.PlaylistFilename != "" {
			sorted = append(sorted, f)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Resolution > sorted[j].Resolution })

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:6\n#EXT-X-INDEPENDENT-SEGMENTS\n\n")
	for _, f := range sorted {
		b.WriteString(masterPlaylistEntry(f))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func masterPlaylistEntry(f vo.VideoFile) string {
	bandwidth := bandwidthFor(f.Resolution)
	if f.Resolution == 0 {
		return fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,CODECS=\"mp4a.40.2\"\n%s", bandwidth, f.PlaylistFilename)
	}
	width := f.Resolution * 16 / 9
	width -= width % 2
	attrs := fmt.Sprintf("BANDWIDTH=%d,RESOLUTION=%dx%d", bandwidth, width, f.Resolution)
	if f.FPS > 0 {
		attrs += fmt.Sprintf(",FRAME-RATE=%d", f.FPS)
	}
	return fmt.Sprintf("#EXT-X-STREAM-INF:%s\n%s", attrs, f.PlaylistFilename)
}

// rewritePlaylist 把子播放列表中对暂存文件名的引用替换为最终文件名
func rewritePlaylist(content []byte, stagedName, finalName string) []byte {
	if stagedName == "" || stagedName == finalName {
		return content
	}
	return []byte(strings.ReplaceAll(string(content), stagedName, finalName))
}
