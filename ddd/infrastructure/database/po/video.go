package po

import "time"

// VideoPO 视频表中编排引擎读写的列
type VideoPO struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	VideoUUID       string    `gorm:"uniqueIndex;size:36;not null" json:"video_uuid"`
	State           string    `gorm:"index;size:40;not null" json:"state"`
	Duration        float64   `gorm:"default:0" json:"duration"`
	InputFilename   string    `gorm:"size:255" json:"input_filename"`
	PreviewFilename string    `gorm:"size:255" json:"preview_filename"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName 指定表名
func (VideoPO) TableName() string {
	return "videos"
}

// VideoFilePO 视频的一个清晰度文件
type VideoFilePO struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	VideoUUID        string    `gorm:"uniqueIndex:uk_video_files_rendition,priority:1;size:36;not null" json:"video_uuid"`
	Kind             string    `gorm:"uniqueIndex:uk_video_files_rendition,priority:2;size:20;not null" json:"kind"`
	Resolution       int       `gorm:"uniqueIndex:uk_video_files_rendition,priority:3;not null" json:"resolution"`
	FPS              int       `json:"fps"`
	Filename         string    `gorm:"size:255;not null" json:"filename"`
	PlaylistFilename string    `gorm:"size:255" json:"playlist_filename"`
	Size             int64     `json:"size"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName 指定表名
func (VideoFilePO) TableName() string {
	return "video_files"
}

// JobInfoPO 视频级未完成任务计数
type JobInfoPO struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	VideoUUID        string    `gorm:"uniqueIndex;size:36;not null" json:"video_uuid"`
	PendingTranscode int       `gorm:"not null;default:0" json:"pending_transcode"`
	PendingMove      int       `gorm:"not null;default:0" json:"pending_move"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Counter 按列名取计数，未知列返回 0
func (p *JobInfoPO) Counter(column string) int {
	switch column {
	case "pending_transcode":
		return p.PendingTranscode
	case "pending_move":
		return p.PendingMove
	default:
		return 0
	}
}

// TableName 指定表名
func (JobInfoPO) TableName() string {
	return "video_job_infos"
}

// AllModels 需要自动迁移的全部表
func AllModels() []interface{} {
	return []interface{}{
		&RunnerJobPO{},
		&RunnerPO{},
		&RegistrationTokenPO{},
		&VideoPO{},
		&VideoFilePO{},
		&JobInfoPO{},
	}
}
