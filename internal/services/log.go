package services

import (
	"context"
	"time"

	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/pkg/response"
	"gorm.io/gorm"
)

// LogService reads the audit trail. Entries are only ever written by
// AuditService.
type LogService struct {
	db *gorm.DB
}

func NewLogService(db *gorm.DB) *LogService {
	return &LogService{db: db}
}

// LogEntry is the public view of a log record.
type LogEntry struct {
	ID        uint      `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

type LogListRequest struct {
	Limit *int `form:"limit"`
}

// List returns entries newest first, at most limit of them when limit is set.
func (s *LogService) List(ctx context.Context, limit *int) ([]LogEntry, error) {
	query := s.db.WithContext(ctx).Model(&models.Log{}).Order("timestamp DESC").Order("id DESC")

	if limit != nil {
		if *limit <= 0 {
			return nil, response.NewBadRequest("limit must be a positive integer")
		}
		query = query.Limit(*limit)
	}

	var logs []models.Log
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, LogEntry{ID: l.ID, Action: l.Action, Timestamp: l.Timestamp})
	}
	return entries, nil
}
