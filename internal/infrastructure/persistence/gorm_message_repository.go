package persistence

import (
	"context"
	"errors"

	"github.com/cipherroom/gateway/internal/domain/crypto"
	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/cipherroom/gateway/pkg/errors"
	"gorm.io/gorm"
)

// GormMessageRepository is the gorm-backed MessageRepository.
type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Save(ctx context.Context, message *entity.Message) error {
	model := toMessageModel(message)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save message: " + err.Error())
	}
	return nil
}

func (r *GormMessageRepository) FindByID(ctx context.Context, id string) (*entity.Message, error) {
	var model models.MessageModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("message not found")
		}
		return nil, domainErrors.NewInternalError("failed to find message: " + err.Error())
	}
	return toMessageEntity(&model), nil
}

// FindByRoomBefore returns up to limit+1 messages ordered newest-first,
// with id strictly before beforeID when given.
func (r *GormMessageRepository) FindByRoomBefore(ctx context.Context, roomID, beforeID string, limit int) ([]*entity.Message, error) {
	q := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id desc").
		Limit(limit + 1)

	if beforeID != "" {
		q = q.Where("id < ?", beforeID)
	}

	var rows []models.MessageModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find messages: " + err.Error())
	}

	out := make([]*entity.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, toMessageEntity(&row))
	}
	return out, nil
}

func (r *GormMessageRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.MessageModel{}, "id = ?", id)
	if result.Error != nil {
		return domainErrors.NewInternalError("failed to delete message: " + result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("message not found")
	}
	return nil
}

func (r *GormMessageRepository) Count(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	if err != nil {
		return 0, domainErrors.NewInternalError("failed to count messages: " + err.Error())
	}
	return count, nil
}

func toMessageModel(m *entity.Message) *models.MessageModel {
	env := m.Envelope()
	return &models.MessageModel{
		ID:                m.ID(),
		RoomID:            m.RoomID(),
		AuthorMemberID:    m.AuthorMemberID(),
		ParentID:          m.ParentID(),
		Ciphertext:        env.Ciphertext,
		Nonce:             env.Nonce,
		AudioReference:    m.AudioReference(),
		IsVoice:           m.IsVoice(),
		HasAssistantVoice: m.HasAssistantVoice(),
		CreatedAt:         m.Timestamp(),
	}
}

func toMessageEntity(model *models.MessageModel) *entity.Message {
	env := crypto.Envelope{Ciphertext: model.Ciphertext, Nonce: model.Nonce}
	return entity.ReconstructMessage(
		model.ID,
		model.RoomID,
		model.AuthorMemberID,
		model.ParentID,
		env,
		model.AudioReference,
		model.IsVoice,
		model.HasAssistantVoice,
		model.CreatedAt,
	)
}
