package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
)

// TaskStore defines task persistence operations, always owner-scoped.
type TaskStore interface {
	InsertTask(ctx context.Context, task *entities.Task) (*entities.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, patch TaskPatch) (*entities.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ListTasks(ctx context.Context, ownerID uuid.UUID) ([]entities.Task, error)
	BatchUpdateOrder(ctx context.Context, updates []OrderUpdate) error
	ClearGroupRef(ctx context.Context, groupID uuid.UUID) error
}

// SubtaskStore defines subtask persistence operations.
type SubtaskStore interface {
	InsertSubtask(ctx context.Context, subtask *entities.Subtask) (*entities.Subtask, error)
	UpdateSubtask(ctx context.Context, id uuid.UUID, patch SubtaskPatch) (*entities.Subtask, error)
	DeleteSubtask(ctx context.Context, id uuid.UUID) error
}

// GroupStore defines task group persistence operations.
type GroupStore interface {
	InsertGroup(ctx context.Context, group *entities.TaskGroup) (*entities.TaskGroup, error)
	UpdateGroup(ctx context.Context, id uuid.UUID, patch GroupPatch) (*entities.TaskGroup, error)
	DeleteGroup(ctx context.Context, id uuid.UUID) error
	ListGroups(ctx context.Context, ownerID uuid.UUID) ([]entities.TaskGroup, error)
	BatchUpdateGroupOrder(ctx context.Context, updates []OrderUpdate) error
}

// TagStore defines tag persistence operations, including the task_tags join.
type TagStore interface {
	InsertTag(ctx context.Context, tag *entities.Tag) (*entities.Tag, error)
	UpdateTag(ctx context.Context, id uuid.UUID, patch TagPatch) (*entities.Tag, error)
	DeleteTag(ctx context.Context, id uuid.UUID) error
	ListTags(ctx context.Context, ownerID uuid.UUID) ([]entities.Tag, error)
	AttachTag(ctx context.Context, taskID, tagID uuid.UUID) error
	DetachTag(ctx context.Context, taskID, tagID uuid.UUID) error
}

// SettingsStore upserts settings keyed by owner id (conflict target).
type SettingsStore interface {
	GetSettings(ctx context.Context, ownerID uuid.UUID) (*entities.UserSettings, error)
	UpsertSettings(ctx context.Context, ownerID uuid.UUID, patch SettingsPatch) (*entities.UserSettings, error)
}

// AchievementStore reads reference achievements and unlock records.
type AchievementStore interface {
	ListAchievements(ctx context.Context) ([]entities.Achievement, error)
	ListUnlocked(ctx context.Context, ownerID uuid.UUID) ([]entities.UserAchievement, error)
}

// EventType classifies a realtime change-feed event.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// TaskEvent is a realtime change pushed for a task row. New is nil for
// deletes; OldID carries the deleted row's id.
type TaskEvent struct {
	Type  EventType
	New   *entities.Task
	OldID uuid.UUID
}

// SubtaskEvent is a realtime change pushed for a subtask row.
type SubtaskEvent struct {
	Type   EventType
	New    *entities.Subtask
	OldID  uuid.UUID
	TaskID uuid.UUID
}

// Realtime delivers row-level change events scoped to one owner. Channels
// close when the context is cancelled.
type Realtime interface {
	SubscribeTasks(ctx context.Context, ownerID uuid.UUID) (<-chan TaskEvent, error)
	SubscribeSubtasks(ctx context.Context, ownerID uuid.UUID) (<-chan SubtaskEvent, error)
}

// Auth covers the identity operations the store needs.
type Auth interface {
	SignInAnonymously(ctx context.Context) (*entities.User, error)
	SignUp(ctx context.Context, email, password string) (*entities.User, error)
	SignIn(ctx context.Context, email, password string) (*entities.User, error)
	SignOut(ctx context.Context, userID uuid.UUID) error
	GetUser(ctx context.Context, userID uuid.UUID) (*entities.User, error)
}

// Gateway is the full backend contract consumed by the client state store.
type Gateway interface {
	TaskStore
	SubtaskStore
	GroupStore
	TagStore
	SettingsStore
	AchievementStore
	Realtime
	Auth

	// CompleteTask runs the server-side completion routine for the task:
	// point award, leveling, streak and achievement checks happen there.
	// It returns the updated settings row.
	CompleteTask(ctx context.Context, taskID uuid.UUID) (*entities.UserSettings, error)

	// MigrateGuest re-owns all rows of guestID under userID.
	MigrateGuest(ctx context.Context, guestID, userID uuid.UUID) error
}

// Patch types: nil pointer means "leave the field untouched".

type TaskPatch struct {
	GroupID           **uuid.UUID
	Title             *string
	Description       *string
	IsCompleted       *bool
	DueDate           **time.Time
	AISpeedScore      *int
	AIImportanceScore *int
	SpeedTag          *string
	ImportanceTag     *string
	Emoji             *string
	AIGenerated       *bool
	OrderIndex        *int64
}

type SubtaskPatch struct {
	Title       *string
	IsCompleted *bool
	OrderIndex  *int64
}

type GroupPatch struct {
	Name       *string
	Emoji      *string
	OrderIndex *int64
}

type TagPatch struct {
	Name  *string
	Color *entities.TagColor
}

type SettingsPatch struct {
	Username         *string
	AnalyzerAPIKey   *string
	AuraPoints       *int
	SpeedWeight      *int
	ImportanceWeight *int
	Theme            *entities.Theme
	HapticFeedback   *bool
	AutoRanking      *bool
	AutoSubtasks     *bool
}

// OrderUpdate assigns a new order index to one row in a batch reorder.
type OrderUpdate struct {
	ID         uuid.UUID
	OrderIndex int64
}
