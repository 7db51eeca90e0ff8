package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangang/issuetrack/internal/metrics"
	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/pkg/logger"
	"gorm.io/gorm"
)

// MutationKind is the lifecycle event being recorded.
type MutationKind string

const (
	MutationInsert MutationKind = "insert"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

func (k MutationKind) verb() string {
	switch k {
	case MutationInsert:
		return "Inserted"
	case MutationUpdate:
		return "Updated"
	case MutationDelete:
		return "Deleted"
	}
	return string(k)
}

// User inserts happen at self-registration, where nobody is signed in.
var trackedMutations = map[EntityType]map[MutationKind]bool{
	EntityUser:    {MutationUpdate: true, MutationDelete: true},
	EntityProject: {MutationInsert: true, MutationUpdate: true, MutationDelete: true},
	EntityIssue:   {MutationInsert: true, MutationUpdate: true, MutationDelete: true},
	EntityComment: {MutationInsert: true, MutationUpdate: true, MutationDelete: true},
}

// IsTracked reports whether kind on entity produces a log entry.
func IsTracked(entity EntityType, kind MutationKind) bool {
	return trackedMutations[entity][kind]
}

// Actor is the caller a mutation is attributed to, as named by the verified
// token. It is resolved to a stored user inside the audited transaction. A
// non-zero UserID must match the stored row.
type Actor struct {
	UserID   uint
	Username string
}

// Mutation performs a write on tx and returns the primary key of the entity
// it touched.
type Mutation func(tx *gorm.DB) (uint, error)

// ComposeAction renders the single-line action text stored in a log entry.
func ComposeAction(kind MutationKind, entity EntityType, id uint, descriptor, username string) string {
	return fmt.Sprintf("%s %s with ID %d (%s) by %s", kind.verb(), entity, id, descriptor, username)
}

// AuditService wraps tracked mutations so each one commits together with its
// log entry.
type AuditService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

func NewAuditService(db *gorm.DB, m *metrics.Metrics) *AuditService {
	return &AuditService{db: db, metrics: m}
}

// Track runs mutate and appends one log entry in a single transaction.
//
// A nil actor runs the mutation without a log entry. An actor that matches no
// stored user is logged as a warning and the mutation still commits. Any other failure, including the log insert, rolls everything back.
func (s *AuditService) Track(ctx context.Context, actor *Actor, kind MutationKind, entity EntityType, mutate Mutation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.track(tx, actor, kind, entity, mutate)
	})
}

func (s *AuditService) track(tx *gorm.DB, actor *Actor, kind MutationKind, entity EntityType, mutate Mutation) error {
	if actor == nil || !IsTracked(entity, kind) {
		_, err := mutate(tx)
		return err
	}

	user, err := findUser(tx, actor.Username, actor.UserID)
	if err != nil {
		return fmt.Errorf("resolve audit actor: %w", err)
	}

	id, err := mutate(tx)
	if err != nil {
		return err
	}

	if user == nil {
		s.metrics.IncrementAuditSkipped()
		logger.Warn().
			Str("username", actor.Username).
			Uint("user_id", actor.UserID).
			Str("entity", string(entity)).
			Str("kind", string(kind)).
			Uint("entity_id", id).
			Msg("audit skipped: acting user not found")
		return nil
	}

	descriptor, err := ResolveDescriptor(tx, entity, id)
	if err != nil {
		s.metrics.IncrementAuditFailures()
		return fmt.Errorf("resolve %s descriptor: %w", entity, err)
	}

	entry := models.Log{
		UserID: &user.ID,
		Action: ComposeAction(kind, entity, id, descriptor, user.Username),
	}
	// the actor removed itself in this transaction
	if entity == EntityUser && kind == MutationDelete && id == user.ID {
		entry.UserID = nil
	}
	if err := tx.Create(&entry).Error; err != nil {
		s.metrics.IncrementAuditFailures()
		return errors.Join(ErrAuditWrite, err)
	}

	s.metrics.IncrementAuditEntries(string(entity), string(kind))
	return nil
}

// ErrAuditWrite marks a mutation rolled back because its log entry could not
// be stored.
var ErrAuditWrite = errors.New("audit log write failed")
