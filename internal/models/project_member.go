package models

// ProjectMember links a user to a project. It carries no attributes of its own.
type ProjectMember struct {
	ProjectID uint `gorm:"primaryKey;autoIncrement:false" json:"project_id"`
	UserID    uint `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
}

func (ProjectMember) TableName() string { return "project_members" }
