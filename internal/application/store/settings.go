package store

import (
	"context"
	"fmt"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/ports"
)

// UpdateSettings merges the given fields into the settings row, last write
// wins per field. The backend upserts on the owner id, creating the row
// lazily on first write.
func (s *Store) UpdateSettings(ctx context.Context, patch ports.SettingsPatch) error {
	if patch.Theme != nil && !patch.Theme.IsValid() {
		return fmt.Errorf("%w: unknown theme %q", entities.ErrValidation, *patch.Theme)
	}
	if patch.SpeedWeight != nil && *patch.SpeedWeight < 0 {
		return fmt.Errorf("%w: speed weight must be non-negative", entities.ErrValidation)
	}
	if patch.ImportanceWeight != nil && *patch.ImportanceWeight < 0 {
		return fmt.Errorf("%w: importance weight must be non-negative", entities.ErrValidation)
	}
	owner, err := s.requireIdentity()
	if err != nil {
		return err
	}

	s.mu.Lock()
	applySettingsPatch(&s.settings, patch)
	s.mu.Unlock()

	canonical, err := s.gateway.UpsertSettings(ctx, owner, patch)
	if err != nil {
		s.rollback(ctx, "update settings", err)
		return fmt.Errorf("%w: upsert settings: %v", entities.ErrPersistence, err)
	}

	s.mu.Lock()
	s.settings = *canonical
	s.mu.Unlock()

	if patch.Theme != nil {
		if err := s.local.SetPref("theme", string(*patch.Theme)); err != nil {
			s.logger.WithError(err).Debugw("Failed to persist theme preference")
		}
	}
	return nil
}

func applySettingsPatch(st *entities.UserSettings, p ports.SettingsPatch) {
	if p.Username != nil {
		st.Username = p.Username
	}
	if p.AnalyzerAPIKey != nil {
		st.AnalyzerAPIKey = p.AnalyzerAPIKey
	}
	if p.AuraPoints != nil {
		st.AuraPoints = *p.AuraPoints
	}
	if p.SpeedWeight != nil {
		st.SpeedWeight = *p.SpeedWeight
	}
	if p.ImportanceWeight != nil {
		st.ImportanceWeight = *p.ImportanceWeight
	}
	if p.Theme != nil {
		st.Theme = *p.Theme
	}
	if p.HapticFeedback != nil {
		st.HapticFeedback = *p.HapticFeedback
	}
	if p.AutoRanking != nil {
		st.AutoRanking = *p.AutoRanking
	}
	if p.AutoSubtasks != nil {
		st.AutoSubtasks = *p.AutoSubtasks
	}
}
