package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/evalhub/assess-go-api/internal/models"
)

// AssessmentFilter narrows assessment listings.
type AssessmentFilter struct {
	DepartmentID  *uint
	PublishedOnly bool
	Group         string
}

// AssessmentRepository exposes persistence helpers for assessments.
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	Update(ctx context.Context, assessment *models.Assessment) error
	GetByID(ctx context.Context, id uint) (models.Assessment, error)
	List(ctx context.Context, filter AssessmentFilter) ([]models.Assessment, error)
	ReplaceManifest(ctx context.Context, assessmentID uint, questions []models.AssessmentQuestion) error
	SetPublished(ctx context.Context, id uint, published bool) error
	SoftDelete(ctx context.Context, id uint) (bool, error)
	CountSubmissions(ctx context.Context, id uint) (int64, error)
}

// NewAssessmentRepository constructs an assessment repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

type assessmentRepository struct {
	db *gorm.DB
}

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

func (r *assessmentRepository) Update(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Save(assessment).Error
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uint) (models.Assessment, error) {
	var assessment models.Assessment
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Questions.Question").
		Preload("Questions.Question.TestCases").
		First(&assessment, id).Error
	if err != nil {
		return models.Assessment{}, err
	}
	return assessment, nil
}

func (r *assessmentRepository) List(ctx context.Context, filter AssessmentFilter) ([]models.Assessment, error) {
	query := r.db.WithContext(ctx).Where("is_active = ?", true)

	if filter.DepartmentID != nil {
		query = query.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if filter.Group != "" {
		// Groups are stored as a comma separated set.
		query = query.Where("',' || groups || ',' LIKE ?", "%,"+filter.Group+",%")
	}

	var assessments []models.Assessment
	err := query.Order("start_time DESC").Find(&assessments).Error
	if err != nil {
		return nil, err
	}
	return assessments, nil
}

func (r *assessmentRepository) ReplaceManifest(ctx context.Context, assessmentID uint, questions []models.AssessmentQuestion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assessment_id = ?", assessmentID).Delete(&models.AssessmentQuestion{}).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].ID = 0
			questions[i].AssessmentID = assessmentID
		}
		if len(questions) == 0 {
			return nil
		}
		return tx.Create(&questions).Error
	})
}

func (r *assessmentRepository) SetPublished(ctx context.Context, id uint, published bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Assessment{}).
		Where("id = ?", id).
		Update("is_published", published).Error
}

// SoftDelete deactivates an assessment only while it has zero submissions.
// Returns false when the guard rejected the delete.
func (r *assessmentRepository) SoftDelete(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assessment{}).
		Where("id = ? AND is_active = ?", id, true).
		Where("NOT EXISTS (SELECT 1 FROM submissions WHERE submissions.assessment_id = assessments.id)").
		Update("is_active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *assessmentRepository) CountSubmissions(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ?", id).
		Count(&count).Error
	return count, err
}
