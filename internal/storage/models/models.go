package models

import (
	"time"

	"gorm.io/datatypes"
)

// Talent 候选人主表。
// Phone/Email 存的是密文，明文只在内存中出现。
type Talent struct {
	TalentID       string `gorm:"type:char(36);primaryKey"`
	Name           string `gorm:"type:varchar(255)"`
	Phone          string `gorm:"type:varchar(512)"`
	Email          string `gorm:"type:varchar(512)"`
	EducationLevel string `gorm:"type:varchar(50)"`
	School         string `gorm:"type:varchar(255)"`
	SchoolTier     string `gorm:"type:varchar(50);index:idx_talents_school_tier"`
	Major          string `gorm:"type:varchar(255)"`
	GraduationDate string `gorm:"type:varchar(50)"`
	WorkYears      int    `gorm:"type:int;default:0"`
	SkillsJSON     datatypes.JSON `gorm:"type:json"`
	SelfEvaluation string         `gorm:"type:text"`

	// 简历原文与照片
	ResumeText    string         `gorm:"type:mediumtext"`
	PhotoURLsJSON datatypes.JSON `gorm:"type:json"`
	// 简历文本的MD5，用于去重
	ContentHash string `gorm:"type:char(32);index:idx_talents_content_hash"`

	// 筛选结论
	ConditionSetID  string `gorm:"type:char(36);index:idx_talents_condition_set_id"`
	ScreeningStatus string `gorm:"type:varchar(50);index:idx_talents_screening_status"` // QUALIFIED / DISQUALIFIED
	ScreeningScore  int    `gorm:"type:int;default:0"`
	ScreeningReason string `gorm:"type:text"`
	ScreenedAt      *time.Time `gorm:"type:datetime(6)"`

	// 流水线状态，入库时STORING，cache阶段收尾时置COMPLETED
	WorkflowStatus string `gorm:"type:varchar(50);default:'STORING';index:idx_talents_workflow_status"`

	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Talent) TableName() string {
	return "talents"
}

// ConditionSet 筛选条件集表，ConfigJSON 是条件树的原始JSON
type ConditionSet struct {
	ConditionSetID string         `gorm:"type:char(36);primaryKey"`
	Name           string         `gorm:"type:varchar(255);not null"`
	Description    string         `gorm:"type:text"`
	ConfigJSON     datatypes.JSON `gorm:"type:json;not null"`
	Status         string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_condition_sets_status"` // ACTIVE / INACTIVE / DELETED
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ConditionSet) TableName() string {
	return "condition_sets"
}

// StringToJSON 把字符串转为 datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}
