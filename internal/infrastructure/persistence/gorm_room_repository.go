package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/cipherroom/gateway/pkg/errors"
)

// GormRoomRepository is the gorm-backed RoomRepository. A room and its
// membership set are written together inside one transaction, matching
// the teacher's db.WithContext(ctx).Transaction idiom for multi-row
// writes.
type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) repository.RoomRepository {
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) Save(ctx context.Context, room *entity.Room) error {
	roomModel := &models.RoomModel{
		ID:        room.ID(),
		Name:      room.Name(),
		SealedKey: room.SealedKey(),
		CreatedAt: room.CreatedAt(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(roomModel).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", room.ID()).Delete(&models.MemberModel{}).Error; err != nil {
			return err
		}
		members := room.Members()
		if len(members) == 0 {
			return nil
		}
		rows := make([]models.MemberModel, 0, len(members))
		for _, m := range members {
			rows = append(rows, models.MemberModel{
				ID:       m.ID(),
				UserID:   m.UserID(),
				RoomID:   m.RoomID(),
				LastSeen: m.LastSeen(),
			})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return domainErrors.NewInternalError("failed to save room: " + err.Error())
	}
	return nil
}

func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*entity.Room, error) {
	var roomModel models.RoomModel
	if err := r.db.WithContext(ctx).First(&roomModel, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("room not found")
		}
		return nil, domainErrors.NewInternalError("failed to find room: " + err.Error())
	}

	var memberRows []models.MemberModel
	if err := r.db.WithContext(ctx).Where("room_id = ?", id).Find(&memberRows).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find room members: " + err.Error())
	}

	members := make([]*entity.Member, 0, len(memberRows))
	for _, m := range memberRows {
		members = append(members, entity.ReconstructMember(m.ID, m.UserID, m.RoomID, m.LastSeen))
	}

	return entity.ReconstructRoom(roomModel.ID, roomModel.Name, roomModel.SealedKey, members, roomModel.CreatedAt), nil
}

func (r *GormRoomRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&models.MemberModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.RoomModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainErrors.NewNotFoundError("room not found")
		}
		return domainErrors.NewInternalError("failed to delete room: " + err.Error())
	}
	return nil
}
