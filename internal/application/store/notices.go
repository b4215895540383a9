package store

// ToastKind classifies a transient toast notification.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is a short-lived success/failure notification.
type Toast struct {
	Kind    ToastKind
	Message string
}

// AchievementNotice is the transient "newly unlocked" overlay payload.
type AchievementNotice struct {
	Code         string
	Name         string
	RewardPoints int
}

// Notices holds the transient, push-only notification state. At most one
// of each kind is active; pushing a new one of the same kind replaces the
// prior. Nothing here is persisted.
type Notices struct {
	Toast            *Toast
	JustLeveledUpTo  *int
	NewlyUnlocked    *AchievementNotice
}

// Notices returns the current transient notification state.
func (s *Store) Notices() Notices {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notices
}

// DismissToast clears the active toast.
func (s *Store) DismissToast() {
	s.mu.Lock()
	s.notices.Toast = nil
	s.mu.Unlock()
}

// DismissLevelUp clears the level-up overlay flag.
func (s *Store) DismissLevelUp() {
	s.mu.Lock()
	s.notices.JustLeveledUpTo = nil
	s.mu.Unlock()
}

// DismissAchievement clears the achievement overlay.
func (s *Store) DismissAchievement() {
	s.mu.Lock()
	s.notices.NewlyUnlocked = nil
	s.mu.Unlock()
}

func (s *Store) pushSuccessToast(msg string) {
	s.mu.Lock()
	s.notices.Toast = &Toast{Kind: ToastSuccess, Message: msg}
	s.mu.Unlock()
}

func (s *Store) pushErrorToast(msg string) {
	s.mu.Lock()
	s.notices.Toast = &Toast{Kind: ToastError, Message: msg}
	s.mu.Unlock()
}

func (s *Store) pushLevelUp(level int) {
	s.mu.Lock()
	s.notices.JustLeveledUpTo = &level
	s.mu.Unlock()
}

func (s *Store) pushAchievement(n AchievementNotice) {
	s.mu.Lock()
	s.notices.NewlyUnlocked = &n
	s.mu.Unlock()
}
