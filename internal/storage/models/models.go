package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Professor 教授主表
type Professor struct {
	ID                 int64          `gorm:"primaryKey;autoIncrement"`
	Name               string         `gorm:"type:varchar(255);not null"`
	Department         string         `gorm:"type:varchar(255);index:idx_professors_department"`
	Email              string         `gorm:"type:varchar(255)"`
	ProfileLink        string         `gorm:"type:varchar(512)"`
	PhotoURL           string         `gorm:"type:varchar(512)"`
	ResearchInterests  string         `gorm:"type:text"`
	RecentPublications datatypes.JSON `gorm:"type:json"` // []PublicationEntry
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	ProfessorSkills []ProfessorSkill `gorm:"foreignKey:ProfessorID;references:ID"`
}

func (Professor) TableName() string {
	return "professors"
}

// PublicationEntry RecentPublications JSON列中的单条论文结构
type PublicationEntry struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
	Year     int    `json:"year,omitempty"`
	Link     string `json:"link,omitempty"`
}

// Publications 反序列化RecentPublications列，坏数据静默得到空列表。
func (p *Professor) Publications() []PublicationEntry {
	if len(p.RecentPublications) == 0 {
		return nil
	}
	var pubs []PublicationEntry
	if err := json.Unmarshal(p.RecentPublications, &pubs); err != nil {
		return nil
	}
	return pubs
}

// Skill 规范技能名表
type Skill struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex:idx_skills_name_unique"`
}

func (Skill) TableName() string {
	return "skills"
}

// ProfessorSkill 教授-技能关联表
type ProfessorSkill struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	ProfessorID int64 `gorm:"not null;index:idx_ps_professor_id;uniqueIndex:idx_ps_professor_skill_unique,priority:1"`
	SkillID     int64 `gorm:"not null;index:idx_ps_skill_id;uniqueIndex:idx_ps_professor_skill_unique,priority:2"`

	Skill Skill `gorm:"foreignKey:SkillID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ProfessorSkill) TableName() string {
	return "professor_skills"
}
