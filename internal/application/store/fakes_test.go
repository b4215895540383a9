package store

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// fakeGateway is an in-memory, stateful ports.Gateway. Failures are
// injected per operation name; gates block an operation until released so
// tests can observe intermediate store state.
type fakeGateway struct {
	mu sync.Mutex

	tasks        map[uuid.UUID]entities.Task
	subtasks     map[uuid.UUID]entities.Subtask
	groups       map[uuid.UUID]entities.TaskGroup
	tags         map[uuid.UUID]entities.Tag
	taskTags     map[uuid.UUID]map[uuid.UUID]bool
	settings     map[uuid.UUID]entities.UserSettings
	achievements []entities.Achievement
	unlocked     map[uuid.UUID][]entities.UserAchievement
	users        map[uuid.UUID]entities.User

	failOn map[string]error
	gates  map[string]chan struct{}
	calls  []string

	taskEvents    chan ports.TaskEvent
	subtaskEvents chan ports.SubtaskEvent

	migratedGuest uuid.UUID
	migratedUser  uuid.UUID
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		tasks:    make(map[uuid.UUID]entities.Task),
		subtasks: make(map[uuid.UUID]entities.Subtask),
		groups:   make(map[uuid.UUID]entities.TaskGroup),
		tags:     make(map[uuid.UUID]entities.Tag),
		taskTags: make(map[uuid.UUID]map[uuid.UUID]bool),
		settings: make(map[uuid.UUID]entities.UserSettings),
		unlocked: make(map[uuid.UUID][]entities.UserAchievement),
		users:    make(map[uuid.UUID]entities.User),
		failOn:   make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
}

func (f *fakeGateway) failNext(op string, err error) {
	f.mu.Lock()
	f.failOn[op] = err
	f.mu.Unlock()
}

// gate makes op block until the returned func is called.
func (f *fakeGateway) gate(op string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[op] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeGateway) enter(op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	gate := f.gates[op]
	err := f.failOn[op]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeGateway) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// TaskStore

func (f *fakeGateway) InsertTask(ctx context.Context, task *entities.Task) (*entities.Task, error) {
	if err := f.enter("InsertTask"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *task
	f.tasks[row.ID] = row
	return &row, nil
}

func (f *fakeGateway) UpdateTask(ctx context.Context, id uuid.UUID, patch ports.TaskPatch) (*entities.Task, error) {
	if err := f.enter("UpdateTask"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	applyTaskPatch(&row, patch)
	f.tasks[id] = row
	return &row, nil
}

func (f *fakeGateway) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := f.enter("DeleteTask"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
	return nil
}

func (f *fakeGateway) ListTasks(ctx context.Context, ownerID uuid.UUID) ([]entities.Task, error) {
	if err := f.enter("ListTasks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []entities.Task{}
	for _, t := range f.tasks {
		if t.UserID != ownerID {
			continue
		}
		t.Subtasks = nil
		for _, st := range f.subtasks {
			if st.TaskID == t.ID {
				t.Subtasks = append(t.Subtasks, st)
			}
		}
		t.Tags = []entities.Tag{}
		for tagID := range f.taskTags[t.ID] {
			if tag, ok := f.tags[tagID]; ok {
				t.Tags = append(t.Tags, tag)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeGateway) BatchUpdateOrder(ctx context.Context, updates []ports.OrderUpdate) error {
	if err := f.enter("BatchUpdateOrder"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range updates {
		if row, ok := f.tasks[u.ID]; ok {
			row.OrderIndex = u.OrderIndex
			f.tasks[u.ID] = row
		}
	}
	return nil
}

func (f *fakeGateway) ClearGroupRef(ctx context.Context, groupID uuid.UUID) error {
	if err := f.enter("ClearGroupRef"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, t := range f.tasks {
		if t.GroupID != nil && *t.GroupID == groupID {
			t.GroupID = nil
			f.tasks[id] = t
		}
	}
	return nil
}

// SubtaskStore

func (f *fakeGateway) InsertSubtask(ctx context.Context, subtask *entities.Subtask) (*entities.Subtask, error) {
	if err := f.enter("InsertSubtask"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *subtask
	f.subtasks[row.ID] = row
	return &row, nil
}

func (f *fakeGateway) UpdateSubtask(ctx context.Context, id uuid.UUID, patch ports.SubtaskPatch) (*entities.Subtask, error) {
	if err := f.enter("UpdateSubtask"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.subtasks[id]
	if !ok {
		return nil, entities.ErrSubtaskNotFound
	}
	if patch.Title != nil {
		row.Title = *patch.Title
	}
	if patch.IsCompleted != nil {
		row.IsCompleted = *patch.IsCompleted
	}
	if patch.OrderIndex != nil {
		row.OrderIndex = *patch.OrderIndex
	}
	f.subtasks[id] = row
	return &row, nil
}

func (f *fakeGateway) DeleteSubtask(ctx context.Context, id uuid.UUID) error {
	if err := f.enter("DeleteSubtask"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subtasks, id)
	return nil
}

// GroupStore

func (f *fakeGateway) InsertGroup(ctx context.Context, group *entities.TaskGroup) (*entities.TaskGroup, error) {
	if err := f.enter("InsertGroup"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *group
	f.groups[row.ID] = row
	return &row, nil
}

func (f *fakeGateway) UpdateGroup(ctx context.Context, id uuid.UUID, patch ports.GroupPatch) (*entities.TaskGroup, error) {
	if err := f.enter("UpdateGroup"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.groups[id]
	if !ok {
		return nil, entities.ErrGroupNotFound
	}
	if patch.Name != nil {
		row.Name = *patch.Name
	}
	if patch.Emoji != nil {
		row.Emoji = *patch.Emoji
	}
	if patch.OrderIndex != nil {
		row.OrderIndex = *patch.OrderIndex
	}
	f.groups[id] = row
	return &row, nil
}

func (f *fakeGateway) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	if err := f.enter("DeleteGroup"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups, id)
	return nil
}

func (f *fakeGateway) ListGroups(ctx context.Context, ownerID uuid.UUID) ([]entities.TaskGroup, error) {
	if err := f.enter("ListGroups"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []entities.TaskGroup{}
	for _, g := range f.groups {
		if g.UserID == ownerID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGateway) BatchUpdateGroupOrder(ctx context.Context, updates []ports.OrderUpdate) error {
	if err := f.enter("BatchUpdateGroupOrder"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range updates {
		if row, ok := f.groups[u.ID]; ok {
			row.OrderIndex = u.OrderIndex
			f.groups[u.ID] = row
		}
	}
	return nil
}

// TagStore

func (f *fakeGateway) InsertTag(ctx context.Context, tag *entities.Tag) (*entities.Tag, error) {
	if err := f.enter("InsertTag"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *tag
	f.tags[row.ID] = row
	return &row, nil
}

func (f *fakeGateway) UpdateTag(ctx context.Context, id uuid.UUID, patch ports.TagPatch) (*entities.Tag, error) {
	if err := f.enter("UpdateTag"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.tags[id]
	if !ok {
		return nil, entities.ErrTagNotFound
	}
	if patch.Name != nil {
		row.Name = *patch.Name
	}
	if patch.Color != nil {
		row.Color = *patch.Color
	}
	f.tags[id] = row
	return &row, nil
}

func (f *fakeGateway) DeleteTag(ctx context.Context, id uuid.UUID) error {
	if err := f.enter("DeleteTag"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tags, id)
	for taskID := range f.taskTags {
		delete(f.taskTags[taskID], id)
	}
	return nil
}

func (f *fakeGateway) ListTags(ctx context.Context, ownerID uuid.UUID) ([]entities.Tag, error) {
	if err := f.enter("ListTags"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []entities.Tag{}
	for _, t := range f.tags {
		if t.UserID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeGateway) AttachTag(ctx context.Context, taskID, tagID uuid.UUID) error {
	if err := f.enter("AttachTag"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taskTags[taskID] == nil {
		f.taskTags[taskID] = make(map[uuid.UUID]bool)
	}
	f.taskTags[taskID][tagID] = true
	return nil
}

func (f *fakeGateway) DetachTag(ctx context.Context, taskID, tagID uuid.UUID) error {
	if err := f.enter("DetachTag"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.taskTags[taskID], tagID)
	return nil
}

// SettingsStore

func (f *fakeGateway) GetSettings(ctx context.Context, ownerID uuid.UUID) (*entities.UserSettings, error) {
	if err := f.enter("GetSettings"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.settings[ownerID]
	if !ok {
		row = entities.UserSettings{
			ID: ownerID, Level: 1,
			SpeedWeight: 50, ImportanceWeight: 50,
			Theme: entities.ThemeDefault, HapticFeedback: true,
		}
		f.settings[ownerID] = row
	}
	return &row, nil
}

func (f *fakeGateway) UpsertSettings(ctx context.Context, ownerID uuid.UUID, patch ports.SettingsPatch) (*entities.UserSettings, error) {
	if err := f.enter("UpsertSettings"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.settings[ownerID]
	if !ok {
		row = entities.UserSettings{ID: ownerID, Level: 1, SpeedWeight: 50, ImportanceWeight: 50, Theme: entities.ThemeDefault, HapticFeedback: true}
	}
	if patch.Username != nil {
		row.Username = patch.Username
	}
	if patch.AnalyzerAPIKey != nil {
		row.AnalyzerAPIKey = patch.AnalyzerAPIKey
	}
	if patch.AuraPoints != nil {
		row.AuraPoints = *patch.AuraPoints
	}
	if patch.SpeedWeight != nil {
		row.SpeedWeight = *patch.SpeedWeight
	}
	if patch.ImportanceWeight != nil {
		row.ImportanceWeight = *patch.ImportanceWeight
	}
	if patch.Theme != nil {
		row.Theme = *patch.Theme
	}
	if patch.HapticFeedback != nil {
		row.HapticFeedback = *patch.HapticFeedback
	}
	if patch.AutoRanking != nil {
		row.AutoRanking = *patch.AutoRanking
	}
	if patch.AutoSubtasks != nil {
		row.AutoSubtasks = *patch.AutoSubtasks
	}
	f.settings[ownerID] = row
	return &row, nil
}

// AchievementStore

func (f *fakeGateway) ListAchievements(ctx context.Context) ([]entities.Achievement, error) {
	if err := f.enter("ListAchievements"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entities.Achievement, len(f.achievements))
	copy(out, f.achievements)
	return out, nil
}

func (f *fakeGateway) ListUnlocked(ctx context.Context, ownerID uuid.UUID) ([]entities.UserAchievement, error) {
	if err := f.enter("ListUnlocked"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entities.UserAchievement, len(f.unlocked[ownerID]))
	copy(out, f.unlocked[ownerID])
	return out, nil
}

// Realtime

func (f *fakeGateway) SubscribeTasks(ctx context.Context, ownerID uuid.UUID) (<-chan ports.TaskEvent, error) {
	if err := f.enter("SubscribeTasks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taskEvents == nil {
		f.taskEvents = make(chan ports.TaskEvent, 16)
	}
	return f.taskEvents, nil
}

func (f *fakeGateway) SubscribeSubtasks(ctx context.Context, ownerID uuid.UUID) (<-chan ports.SubtaskEvent, error) {
	if err := f.enter("SubscribeSubtasks"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subtaskEvents == nil {
		f.subtaskEvents = make(chan ports.SubtaskEvent, 16)
	}
	return f.subtaskEvents, nil
}

// Auth

func (f *fakeGateway) SignInAnonymously(ctx context.Context) (*entities.User, error) {
	if err := f.enter("SignInAnonymously"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user := entities.User{ID: uuid.New(), IsAnonymous: true}
	f.users[user.ID] = user
	return &user, nil
}

func (f *fakeGateway) SignUp(ctx context.Context, email, password string) (*entities.User, error) {
	if err := f.enter("SignUp"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user := entities.User{ID: uuid.New(), Email: &email}
	f.users[user.ID] = user
	return &user, nil
}

func (f *fakeGateway) SignIn(ctx context.Context, email, password string) (*entities.User, error) {
	if err := f.enter("SignIn"); err != nil {
		return nil, err
	}
	return nil, errors.New("not supported in fake")
}

func (f *fakeGateway) SignOut(ctx context.Context, userID uuid.UUID) error {
	return f.enter("SignOut")
}

func (f *fakeGateway) GetUser(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	if err := f.enter("GetUser"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return &user, nil
}

// CompleteTask mirrors the backend routine closely enough for the store's
// contract: completion flag, base-plus-importance award, level recompute
// and the first-task unlock.
func (f *fakeGateway) CompleteTask(ctx context.Context, taskID uuid.UUID) (*entities.UserSettings, error) {
	if err := f.enter("CompleteTask"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	task, ok := f.tasks[taskID]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	task.IsCompleted = true
	f.tasks[taskID] = task

	row := f.settings[task.UserID]
	if row.Level == 0 {
		row = entities.UserSettings{ID: task.UserID, Level: 1, SpeedWeight: 50, ImportanceWeight: 50, Theme: entities.ThemeDefault, HapticFeedback: true}
	}
	award := 10
	if task.AIImportanceScore != nil {
		award += *task.AIImportanceScore
	}
	row.AuraPoints += award

	completed := 0
	for _, t := range f.tasks {
		if t.UserID == task.UserID && t.IsCompleted {
			completed++
		}
	}
	// Unlocks are at-most-once; a repeat completion never re-awards.
	if completed >= 1 && len(f.achievements) > 0 {
		a := f.achievements[0]
		already := false
		for _, ua := range f.unlocked[task.UserID] {
			if ua.AchievementID == a.ID {
				already = true
				break
			}
		}
		if !already {
			f.unlocked[task.UserID] = append(f.unlocked[task.UserID],
				entities.UserAchievement{UserID: task.UserID, AchievementID: a.ID})
			row.AuraPoints += a.RewardPoints
		}
	}

	row.Level = 1 + row.AuraPoints/1000
	f.settings[task.UserID] = row
	return &row, nil
}

func (f *fakeGateway) MigrateGuest(ctx context.Context, guestID, userID uuid.UUID) error {
	if err := f.enter("MigrateGuest"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.migratedGuest = guestID
	f.migratedUser = userID
	for id, t := range f.tasks {
		if t.UserID == guestID {
			t.UserID = userID
			f.tasks[id] = t
		}
	}
	for id, g := range f.groups {
		if g.UserID == guestID {
			g.UserID = userID
			f.groups[id] = g
		}
	}
	for id, t := range f.tags {
		if t.UserID == guestID {
			t.UserID = userID
			f.tags[id] = t
		}
	}
	if row, ok := f.settings[guestID]; ok {
		if _, exists := f.settings[userID]; !exists {
			row.ID = userID
			f.settings[userID] = row
		}
		delete(f.settings, guestID)
	}
	return nil
}

// fakeAnalyzer returns a fixed enrichment or error.
type fakeAnalyzer struct {
	mu         sync.Mutex
	enrichment *ports.Enrichment
	emoji      string
	err        error
	calls      int
	lastReq    ports.AnalyzeRequest
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req ports.AnalyzeRequest) (*ports.Enrichment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if f.enrichment == nil {
		return &ports.Enrichment{AIGenerated: true}, nil
	}
	return f.enrichment, nil
}

func (f *fakeAnalyzer) SuggestEmoji(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.emoji, nil
}

// fakeLocal is an in-memory ports.LocalStore.
type fakeLocal struct {
	mu      sync.Mutex
	guestID *uuid.UUID
	prefs   map[string]string
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{prefs: make(map[string]string)}
}

func (f *fakeLocal) GuestID() (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.guestID == nil {
		return uuid.Nil, false, nil
	}
	return *f.guestID, true, nil
}

func (f *fakeLocal) SetGuestID(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guestID = &id
	return nil
}

func (f *fakeLocal) ClearGuestID() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guestID = nil
	return nil
}

func (f *fakeLocal) GetPref(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.prefs[key]
	return v, ok, nil
}

func (f *fakeLocal) SetPref(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[key] = value
	return nil
}

func (f *fakeLocal) Close() error { return nil }

// newTestStore builds an initialized store over fresh fakes.
func newTestStore(t interface {
	Helper()
	Fatalf(format string, args ...interface{})
}) (*Store, *fakeGateway, *fakeAnalyzer, *fakeLocal) {
	t.Helper()
	gw := newFakeGateway()
	an := &fakeAnalyzer{}
	local := newFakeLocal()
	s := New(gw, an, local, logger.Nop())
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return s, gw, an, local
}
