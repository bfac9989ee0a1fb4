package po

import "time"

// RunnerPO runner 持久化对象
type RunnerPO struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	RunnerUUID    string     `gorm:"uniqueIndex;size:36;not null" json:"runner_uuid"`
	Token         string     `gorm:"uniqueIndex;size:512;not null" json:"-"`
	Name          string     `gorm:"size:100;not null" json:"name"`
	Description   string     `gorm:"size:1000" json:"description"`
	IP            string     `gorm:"size:64" json:"ip"`
	LastContactAt *time.Time `json:"last_contact_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (RunnerPO) TableName() string {
	return "runners"
}

// RegistrationTokenPO 注册令牌持久化对象
type RegistrationTokenPO struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Token     string    `gorm:"uniqueIndex;size:64;not null" json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (RegistrationTokenPO) TableName() string {
	return "runner_registration_tokens"
}
