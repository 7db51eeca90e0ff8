package models

import "time"

// Log is an append-only audit record. UserID is nil once the actor has been
// deleted.
type Log struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
	Action    string    `gorm:"type:text;not null" json:"action"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}

func (Log) TableName() string { return "logs" }
