package services

import (
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
)

// EntityType names a tracked table in audit messages.
type EntityType string

const (
	EntityUser    EntityType = "user"
	EntityProject EntityType = "project"
	EntityIssue   EntityType = "issue"
	EntityComment EntityType = "comment"
)

// DescriptorNotAvailable labels an entity that has no label or no longer exists.
const DescriptorNotAvailable = "N/A"

const maxDescriptorRunes = 64

// DescriptorFunc loads the label for one row. An empty result with a nil
// error means the row is gone or has no label.
type DescriptorFunc func(tx *gorm.DB, id uint) (string, error)

var descriptors = map[EntityType]DescriptorFunc{
	EntityUser:    columnDescriptor("users", "name"),
	EntityProject: columnDescriptor("projects", "name"),
	EntityIssue:   columnDescriptor("issues", "title"),
	EntityComment: columnDescriptor("comments", "content"),
}

func columnDescriptor(table, column string) DescriptorFunc {
	return func(tx *gorm.DB, id uint) (string, error) {
		var labels []string
		if err := tx.Table(table).Where("id = ?", id).Limit(1).Pluck(column, &labels).Error; err != nil {
			return "", err
		}
		if len(labels) == 0 {
			return "", nil
		}
		return labels[0], nil
	}
}

// ResolveDescriptor returns a single-line label for the entity, or
// DescriptorNotAvailable. Only lookup failures are returned as errors.
func ResolveDescriptor(tx *gorm.DB, entity EntityType, id uint) (string, error) {
	fn, ok := descriptors[entity]
	if !ok {
		return DescriptorNotAvailable, nil
	}
	label, err := fn(tx, id)
	if err != nil {
		return "", err
	}
	label = normalizeDescriptor(label)
	if label == "" {
		return DescriptorNotAvailable, nil
	}
	return label, nil
}

func normalizeDescriptor(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxDescriptorRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxDescriptorRunes-3]) + "..."
}
