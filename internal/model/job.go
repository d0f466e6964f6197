package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Job 一次生成任务的审计记录，不驱动执行
type Job struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	StoryID     string     `json:"storyId" gorm:"size:36;index;not null"`
	Type        string     `json:"type" gorm:"size:20;not null"`                // text, images, audio, translate, validate
	Status      string     `json:"status" gorm:"size:20;index;default:pending"` // pending, running, completed, failed
	Progress    int        `json:"progress" gorm:"default:0"`                   // 0-100
	Result      string     `json:"result,omitempty" gorm:"type:text"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

const (
	JobTypeText      = "text"
	JobTypeImages    = "images"
	JobTypeAudio     = "audio"
	JobTypeTranslate = "translate"
	JobTypeValidate  = "validate"
)

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}
