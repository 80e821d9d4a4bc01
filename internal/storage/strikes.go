package storage

import (
	"context"
	"errors"

	"anonchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyStrike runs in a single transaction: the processed_strikes insert makes
// redelivered events no-ops, and the FOR UPDATE lock on the counter row serialises
// concurrent strikes for the same user across every worker instance.
func (s *Service) ApplyStrike(ctx context.Context, eventID, userID string, apply func(counter *models.StrikeCounter) error) (bool, error) {
	applied := false

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if eventID != "" {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.ProcessedStrike{EventID: eventID, UserID: userID})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.StrikeCounter{UserID: userID}).Error; err != nil {
			return err
		}

		var counter models.StrikeCounter
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&counter).Error; err != nil {
			return err
		}

		if err := apply(&counter); err != nil {
			return err
		}
		if err := tx.Save(&counter).Error; err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// GetStrikeCounter returns nil when the user has never been struck.
func (s *Service) GetStrikeCounter(ctx context.Context, userID string) (*models.StrikeCounter, error) {
	var counter models.StrikeCounter

	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &counter, nil
}
