package store

import (
	"context"

	"github.com/google/uuid"
)

// checkNewUnlocks diffs the server's unlock records against the known set
// after a completion routine runs. Unlock conditions are computed server
// side; this only surfaces what changed. The reward points from an unlock
// arrive inside the settings row the routine already returned.
func (s *Store) checkNewUnlocks(ctx context.Context) {
	owner, err := s.requireIdentity()
	if err != nil {
		return
	}

	rows, err := s.gateway.ListUnlocked(ctx, owner)
	if err != nil {
		s.logger.WithError(err).Debugw("Achievement unlock check failed")
		return
	}

	s.mu.Lock()
	var fresh []uuid.UUID
	for _, ua := range rows {
		if !s.unlocked[ua.AchievementID] {
			s.unlocked[ua.AchievementID] = true
			fresh = append(fresh, ua.AchievementID)
		}
	}
	s.mu.Unlock()

	if len(fresh) == 0 {
		return
	}

	all, err := s.gateway.ListAchievements(ctx)
	if err != nil {
		s.logger.WithError(err).Debugw("Failed to load achievement details")
		return
	}
	// Showing a new overlay replaces the prior one, so only the last
	// fresh unlock stays visible.
	for _, id := range fresh {
		for _, a := range all {
			if a.ID == id {
				s.pushAchievement(AchievementNotice{
					Code:         a.Code,
					Name:         a.Name,
					RewardPoints: a.RewardPoints,
				})
				s.logger.Infow("Achievement unlocked", "code", a.Code)
			}
		}
	}
}
