package services

import (
	"github.com/huangang/issuetrack/internal/models"
	"gorm.io/gorm"
)

// deleteIssues removes the issues and their comments. It returns the number
// of issue rows removed.
func deleteIssues(tx *gorm.DB, issueIDs []uint) (int64, error) {
	if len(issueIDs) == 0 {
		return 0, nil
	}
	if err := tx.Where("issue_id IN ?", issueIDs).Delete(&models.Comment{}).Error; err != nil {
		return 0, err
	}
	result := tx.Where("id IN ?", issueIDs).Delete(&models.Issue{})
	return result.RowsAffected, result.Error
}

// deleteProjects removes the projects with their issues, comments and
// memberships. It returns the number of project rows removed.
func deleteProjects(tx *gorm.DB, projectIDs []uint) (int64, error) {
	if len(projectIDs) == 0 {
		return 0, nil
	}

	var issueIDs []uint
	if err := tx.Model(&models.Issue{}).Where("project_id IN ?", projectIDs).Pluck("id", &issueIDs).Error; err != nil {
		return 0, err
	}
	if _, err := deleteIssues(tx, issueIDs); err != nil {
		return 0, err
	}
	if err := tx.Where("project_id IN ?", projectIDs).Delete(&models.ProjectMember{}).Error; err != nil {
		return 0, err
	}
	result := tx.Where("id IN ?", projectIDs).Delete(&models.Project{})
	return result.RowsAffected, result.Error
}

// deleteUser removes the user with the projects they own, the comments they
// wrote and their memberships. Their log entries are kept and detached.
// It returns the number of user rows removed.
func deleteUser(tx *gorm.DB, userID uint) (int64, error) {
	var projectIDs []uint
	if err := tx.Model(&models.Project{}).Where("owner_id = ?", userID).Pluck("id", &projectIDs).Error; err != nil {
		return 0, err
	}
	if _, err := deleteProjects(tx, projectIDs); err != nil {
		return 0, err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.Comment{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.ProjectMember{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&models.Log{}).Where("user_id = ?", userID).Update("user_id", nil).Error; err != nil {
		return 0, err
	}
	result := tx.Delete(&models.User{}, userID)
	return result.RowsAffected, result.Error
}
