package convertor

import (
	"time"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/database/po"
)

// VideoConvertor 视频转换器
type VideoConvertor struct{}

// NewVideoConvertor 创建视频转换器
func NewVideoConvertor() *VideoConvertor {
	return &VideoConvertor{}
}

// POToEntity 视频与文件记录合并为实体
func (c *VideoConvertor) POToEntity(v *po.VideoPO, files []*po.VideoFilePO) *entity.Video {
	if v == nil {
		return nil
	}
	list := make([]vo.VideoFile, 0, len(files))
	for _, f := range files {
		list = append(list, c.FilePOToVO(f))
	}
	return entity.RestoreVideo(v.VideoUUID, vo.VideoState(v.State), v.Duration, v.InputFilename, v.PreviewFilename, list, v.UpdatedAt)
}

// FilePOToVO 文件记录转值对象
func (c *VideoConvertor) FilePOToVO(f *po.VideoFilePO) vo.VideoFile {
	return vo.VideoFile{
		Kind:             vo.VideoFileKind(f.Kind),
		Resolution:       f.Resolution,
		FPS:              f.FPS,
		Filename:         f.Filename,
		PlaylistFilename: f.PlaylistFilename,
		Size:             f.Size,
	}
}

// FileVOToPO 值对象转文件记录
func (c *VideoConvertor) FileVOToPO(videoUUID string, f vo.VideoFile) *po.VideoFilePO {
	now := time.Now()
	return &po.VideoFilePO{
		VideoUUID:        videoUUID,
		Kind:             string(f.Kind),
		Resolution:       f.Resolution,
		FPS:              f.FPS,
		Filename:         f.Filename,
		PlaylistFilename: f.PlaylistFilename,
		Size:             f.Size,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// JobInfoPOToEntity 计数转实体，nil 视为全零
func (c *VideoConvertor) JobInfoPOToEntity(videoUUID string, p *po.JobInfoPO) *entity.JobInfo {
	if p == nil {
		return &entity.JobInfo{VideoUUID: videoUUID}
	}
	return &entity.JobInfo{
		VideoUUID:        p.VideoUUID,
		PendingTranscode: p.PendingTranscode,
		PendingMove:      p.PendingMove,
	}
}
