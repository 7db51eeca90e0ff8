package models

import "time"

// Project groups issues. Its owner and members may access it.
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	OwnerID     uint      `gorm:"index;not null" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	Members     []User    `gorm:"many2many:project_members;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Issues      []Issue   `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"issues,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// IsOwnedBy reports whether userID created the project.
func (p *Project) IsOwnedBy(userID uint) bool {
	return p != nil && p.OwnerID == userID
}
