package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/evalhub/assess-go-api/internal/models"
)

// QuestionRepository reads from the question bank. The assessment core never
// writes back to question records.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Question, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Question, error)
}

// NewQuestionRepository constructs a read-only question repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

type questionRepository struct {
	db *gorm.DB
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).
		Preload("TestCases").
		First(&question, id).Error
	if err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func (r *questionRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var questions []models.Question
	err := r.db.WithContext(ctx).
		Preload("TestCases").
		Where("id IN ?", ids).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}
