package services

import (
	"testing"

	"github.com/huangang/issuetrack/internal/metrics"
	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := models.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

type fixture struct {
	db       *gorm.DB
	metrics  *metrics.Metrics
	audit    *AuditService
	authz    *Authorizer
	users    *UserService
	projects *ProjectService
	issues   *IssueService
	comments *CommentService
	logs     *LogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	m := metrics.New(prometheus.NewRegistry())
	audit := NewAuditService(db, m)
	return &fixture{
		db:       db,
		metrics:  m,
		audit:    audit,
		authz:    NewAuthorizer(db, m),
		users:    NewUserService(db, audit),
		projects: NewProjectService(db, audit),
		issues:   NewIssueService(db, audit),
		comments: NewCommentService(db, audit),
		logs:     NewLogService(db),
	}
}

func (f *fixture) createUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	user := models.User{
		Name:     username + " name",
		Username: username,
		Email:    username + "@example.com",
		Password: "not-a-real-hash",
		Role:     role,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return &user
}

// createProject inserts directly, bypassing audit, with owner as first member.
func (f *fixture) createProject(t *testing.T, name string, owner *models.User, members ...*models.User) *models.Project {
	t.Helper()
	project := models.Project{Name: name, Description: name + " description", OwnerID: owner.ID}
	require.NoError(t, f.db.Create(&project).Error)
	require.NoError(t, f.db.Create(&models.ProjectMember{ProjectID: project.ID, UserID: owner.ID}).Error)
	for _, m := range members {
		require.NoError(t, f.db.Create(&models.ProjectMember{ProjectID: project.ID, UserID: m.ID}).Error)
	}
	return &project
}

func (f *fixture) countLogs(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Log{}).Count(&n).Error)
	return n
}

func (f *fixture) lastLog(t *testing.T) models.Log {
	t.Helper()
	var l models.Log
	require.NoError(t, f.db.Order("id DESC").First(&l).Error)
	return l
}

// afterFirstQuery runs fn once, on the caller's connection, right after the
// first query against table.
func (f *fixture) afterFirstQuery(t *testing.T, table string, fn func(tx *gorm.DB)) {
	t.Helper()
	fired := false
	name := "test:after_query:" + table
	err := f.db.Callback().Query().After("gorm:query").Register(name, func(db *gorm.DB) {
		if fired || db.Error != nil || db.Statement.Table != table {
			return
		}
		fired = true
		fn(db.Session(&gorm.Session{NewDB: true}))
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.db.Callback().Query().Remove(name) })
}

func actorFor(u *models.User) *Actor {
	return &Actor{UserID: u.ID, Username: u.Username}
}

func claimsFor(u *models.User) *utils.Claims {
	return &utils.Claims{UserID: u.ID, Username: u.Username, Role: u.Role.String()}
}

func uintPtr(v uint) *uint { return &v }
