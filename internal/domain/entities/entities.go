package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrSubtaskNotFound     = errors.New("subtask not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrTagNotFound         = errors.New("tag not found")
	ErrSettingsNotFound    = errors.New("settings not found")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrValidation          = errors.New("validation failed")
	ErrUnauthenticated     = errors.New("no identity available")
	ErrPersistence         = errors.New("persistence failure")
	ErrEnrichment          = errors.New("enrichment failure")
	ErrMigration           = errors.New("guest migration failure")
	ErrEmptyTitle          = errors.New("title must not be empty")
	ErrGroupNameTooLong    = errors.New("group name exceeds 50 characters")
	ErrScoreOutOfRange     = errors.New("score must be between 1 and 20")
)

// Enums and types
type TagColor string

const (
	TagColorRed    TagColor = "red"
	TagColorOrange TagColor = "orange"
	TagColorYellow TagColor = "yellow"
	TagColorGreen  TagColor = "green"
	TagColorTeal   TagColor = "teal"
	TagColorBlue   TagColor = "blue"
	TagColorPurple TagColor = "purple"
	TagColorPink   TagColor = "pink"
)

type Theme string

const (
	ThemeDefault Theme = "default"
	ThemeDark    Theme = "dark"
	ThemeOcean   Theme = "ocean"
	ThemeForest  Theme = "forest"
	ThemeSakura  Theme = "sakura"
)

// DefaultGroupEmoji is the placeholder shown until the analyzer assigns one.
const DefaultGroupEmoji = "📁"

// Score bounds for AI-derived speed/importance scores.
const (
	MinAIScore = 1
	MaxAIScore = 20
)

// User represents the owning principal of all task data. A guest user has
// IsAnonymous set and exists only on this device until migrated.
type User struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Email       *string    `json:"email" db:"email"`
	Username    *string    `json:"username" db:"username"`
	IsAnonymous bool       `json:"is_anonymous" db:"is_anonymous"`
	AvatarURL   *string    `json:"avatar_url" db:"avatar_url"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at" db:"deleted_at"`
}

// Task represents a task in the system
type Task struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	UserID            uuid.UUID  `json:"user_id" db:"user_id"`
	GroupID           *uuid.UUID `json:"group_id" db:"group_id"`
	Title             string     `json:"title" db:"title"`
	Description       *string    `json:"description" db:"description"`
	IsCompleted       bool       `json:"is_completed" db:"is_completed"`
	DueDate           *time.Time `json:"due_date" db:"due_date"`
	AISpeedScore      *int       `json:"ai_speed_score" db:"ai_speed_score"`
	AIImportanceScore *int       `json:"ai_importance_score" db:"ai_importance_score"`
	SpeedTag          *string    `json:"speed_tag" db:"speed_tag"`
	ImportanceTag     *string    `json:"importance_tag" db:"importance_tag"`
	Emoji             *string    `json:"emoji" db:"emoji"`
	AIGenerated       bool       `json:"ai_generated" db:"ai_generated"`
	EnableAIRanking   bool       `json:"enable_ai_ranking" db:"enable_ai_ranking"`
	EnableAISubtasks  bool       `json:"enable_ai_subtasks" db:"enable_ai_subtasks"`
	OrderIndex        int64      `json:"order_index" db:"order_index"`
	Subtasks          []Subtask  `json:"subtasks"`
	Tags              []Tag      `json:"tags"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Subtask is owned by exactly one task and ordered within it.
type Subtask struct {
	ID          uuid.UUID `json:"id" db:"id"`
	TaskID      uuid.UUID `json:"task_id" db:"task_id"`
	Title       string    `json:"title" db:"title"`
	IsCompleted bool      `json:"is_completed" db:"is_completed"`
	OrderIndex  int64     `json:"order_index" db:"order_index"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TaskGroup groups tasks. Deleting a group nulls the reference on its tasks.
type TaskGroup struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Name       string    `json:"name" db:"name"`
	Emoji      string    `json:"emoji" db:"emoji"`
	OrderIndex int64     `json:"order_index" db:"order_index"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Tag is a user-owned label, many-to-many with tasks.
type Tag struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Color     TagColor  `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserSettings holds one row per identity, created lazily by upsert.
type UserSettings struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	Username         *string    `json:"username" db:"username"`
	AnalyzerAPIKey   *string    `json:"analyzer_api_key" db:"analyzer_api_key"`
	AuraPoints       int        `json:"aura_points" db:"aura_points"`
	Level            int        `json:"level" db:"level"`
	SpeedWeight      int        `json:"speed_weight" db:"speed_weight"`
	ImportanceWeight int        `json:"importance_weight" db:"importance_weight"`
	Theme            Theme      `json:"theme" db:"theme"`
	HapticFeedback   bool       `json:"haptic_feedback" db:"haptic_feedback"`
	AutoRanking      bool       `json:"auto_ranking" db:"auto_ranking"`
	AutoSubtasks     bool       `json:"auto_subtasks" db:"auto_subtasks"`
	Streak           int        `json:"streak" db:"streak"`
	LastCompletedAt  *time.Time `json:"last_completed_at" db:"last_completed_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// Achievement is read-mostly reference data.
type Achievement struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Code         string    `json:"code" db:"code"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	RewardPoints int       `json:"reward_points" db:"reward_points"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserAchievement records an unlock; unique per (user, achievement).
type UserAchievement struct {
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	AchievementID uuid.UUID `json:"achievement_id" db:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at" db:"unlocked_at"`
}

// APIKey is a pooled analyzer credential managed by admins.
type APIKey struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Label     string    `json:"label" db:"label"`
	Key       string    `json:"-" db:"key"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	UsedCount int64     `json:"used_count" db:"used_count"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UsageStat is an aggregated admin analytics row.
type UsageStat struct {
	Day            time.Time `json:"day" db:"day"`
	TasksCreated   int       `json:"tasks_created" db:"tasks_created"`
	TasksCompleted int       `json:"tasks_completed" db:"tasks_completed"`
	AnalyzerCalls  int       `json:"analyzer_calls" db:"analyzer_calls"`
	ActiveUsers    int       `json:"active_users" db:"active_users"`
}

// Business logic methods for Task

// IsArchived reports whether the task is retained only for history.
// Archival is derived: completed tasks are archived.
func (t *Task) IsArchived() bool {
	return t.IsCompleted
}

func (t *Task) IsOverdue() bool {
	if t.DueDate == nil || t.IsCompleted {
		return false
	}
	return time.Now().After(*t.DueDate)
}

// HasTag reports whether the tag is attached to this task.
func (t *Task) HasTag(tagID uuid.UUID) bool {
	for _, tag := range t.Tags {
		if tag.ID == tagID {
			return true
		}
	}
	return false
}

// ValidateTitle rejects empty or whitespace-only titles before any I/O.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// ValidateGroupName enforces the 50-character limit after trimming.
func ValidateGroupName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyTitle
	}
	if len([]rune(trimmed)) > 50 {
		return ErrGroupNameTooLong
	}
	return nil
}

// ValidateScore checks an AI score against the 1-20 range.
func ValidateScore(score int) error {
	if score < MinAIScore || score > MaxAIScore {
		return ErrScoreOutOfRange
	}
	return nil
}

// Utility methods

func (c TagColor) IsValid() bool {
	switch c {
	case TagColorRed, TagColorOrange, TagColorYellow, TagColorGreen,
		TagColorTeal, TagColorBlue, TagColorPurple, TagColorPink:
		return true
	default:
		return false
	}
}

func (t Theme) IsValid() bool {
	switch t {
	case ThemeDefault, ThemeDark, ThemeOcean, ThemeForest, ThemeSakura:
		return true
	default:
		return false
	}
}
