package models

import "time"

// Comment is written by one user on one issue.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	IssueID   uint      `gorm:"index;not null" json:"issue_id"`
	Issue     *Issue    `gorm:"foreignKey:IssueID" json:"-"`
}

func (Comment) TableName() string { return "comments" }
