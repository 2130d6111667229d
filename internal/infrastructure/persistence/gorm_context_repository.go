package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/cipherroom/gateway/pkg/errors"
)

// GormRoomContextRepository is the gorm-backed RoomContextRepository.
// Daily summaries and notes are child rows joined by RoomID, rewritten
// wholesale on every Save inside one transaction — the Context Store
// updates its whole rolling state as a unit, never a single note.
type GormRoomContextRepository struct {
	db *gorm.DB
}

func NewGormRoomContextRepository(db *gorm.DB) repository.RoomContextRepository {
	return &GormRoomContextRepository{db: db}
}

func (r *GormRoomContextRepository) FindByRoomID(ctx context.Context, roomID string) (*entity.RoomContext, error) {
	var model models.RoomContextModel
	if err := r.db.WithContext(ctx).First(&model, "room_id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("room context not found")
		}
		return nil, domainErrors.NewInternalError("failed to find room context: " + err.Error())
	}

	var summaryRows []models.DailySummaryModel
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Find(&summaryRows).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find daily summaries: " + err.Error())
	}
	var noteRows []models.RoomNoteModel
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("created_at asc").Find(&noteRows).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find room notes: " + err.Error())
	}

	var topics []string
	if model.ActiveTopics != "" {
		if err := json.Unmarshal([]byte(model.ActiveTopics), &topics); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal active topics: " + err.Error())
		}
	}

	summaries := make([]*entity.DailySummary, 0, len(summaryRows))
	for _, s := range summaryRows {
		summaries = append(summaries, entity.NewDailySummary(s.Date, s.Content))
	}

	notes := make([]*entity.RoomNote, 0, len(noteRows))
	for _, n := range noteRows {
		var tags []string
		if n.Tags != "" {
			if err := json.Unmarshal([]byte(n.Tags), &tags); err != nil {
				return nil, domainErrors.NewInternalError("failed to unmarshal note tags: " + err.Error())
			}
		}
		notes = append(notes, entity.ReconstructRoomNote(
			n.ID, n.RoomID, entity.RoomNoteType(n.NoteType), n.Content,
			entity.RoomNotePriority(n.Priority), n.SourceMessageID, tags, n.Creator, n.CreatedAt,
		))
	}

	return entity.ReconstructRoomContext(
		model.RoomID, model.Summary, topics, model.MessagesSinceCompress,
		model.LastCompressedAt, summaries, notes,
	), nil
}

func (r *GormRoomContextRepository) Save(ctx context.Context, rc *entity.RoomContext) error {
	topicsJSON, err := json.Marshal(rc.ActiveTopics())
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal active topics: " + err.Error())
	}

	model := &models.RoomContextModel{
		RoomID:                rc.RoomID(),
		Summary:               rc.Summary(),
		ActiveTopics:          string(topicsJSON),
		MessagesSinceCompress: rc.MessagesSinceCompress(),
		LastCompressedAt:      rc.LastCompressedAt(),
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(model).Error; err != nil {
			return err
		}

		if err := tx.Where("room_id = ?", rc.RoomID()).Delete(&models.DailySummaryModel{}).Error; err != nil {
			return err
		}
		summaryRows := make([]models.DailySummaryModel, 0)
		for _, d := range rc.DailySummaries() {
			summaryRows = append(summaryRows, models.DailySummaryModel{RoomID: rc.RoomID(), Date: d.Date(), Content: d.Content()})
		}
		if len(summaryRows) > 0 {
			if err := tx.Create(&summaryRows).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("room_id = ?", rc.RoomID()).Delete(&models.RoomNoteModel{}).Error; err != nil {
			return err
		}
		notes := rc.Notes()
		if len(notes) == 0 {
			return nil
		}
		noteRows := make([]models.RoomNoteModel, 0, len(notes))
		for _, n := range notes {
			tagsJSON, err := json.Marshal(n.Tags())
			if err != nil {
				return err
			}
			noteRows = append(noteRows, models.RoomNoteModel{
				ID: n.ID(), RoomID: n.RoomID(), NoteType: string(n.Type()), Content: n.Content(),
				Priority: string(n.Priority()), SourceMessageID: n.SourceMessageID(),
				Tags: string(tagsJSON), Creator: n.Creator(), CreatedAt: n.CreatedAt(),
			})
		}
		return tx.Create(&noteRows).Error
	})
	if err != nil {
		return domainErrors.NewInternalError("failed to save room context: " + err.Error())
	}
	return nil
}
