package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/ports"
)

// changeChannel is the postgres NOTIFY channel the row triggers write to.
const changeChannel = "auratask_changes"

// notifyPayload is the JSON body emitted by the notify_change() trigger.
type notifyPayload struct {
	Table  string          `json:"table"`
	Type   ports.EventType `json:"type"`
	UserID uuid.UUID       `json:"user_id"`
	Row    json.RawMessage `json:"row,omitempty"`
	OldID  uuid.UUID       `json:"old_id,omitempty"`
	TaskID uuid.UUID       `json:"task_id,omitempty"`
}

type subscriber struct {
	ownerID  uuid.UUID
	tasks    chan ports.TaskEvent
	subtasks chan ports.SubtaskEvent
	done     <-chan struct{}
}

type hub struct {
	mu   sync.Mutex
	subs []*subscriber
	once sync.Once
}

// SubscribeTasks delivers row-level task changes for one owner. The
// channel closes when ctx is cancelled.
func (g *Gateway) SubscribeTasks(ctx context.Context, ownerID uuid.UUID) (<-chan ports.TaskEvent, error) {
	sub, err := g.subscribe(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return sub.tasks, nil
}

// SubscribeSubtasks delivers row-level subtask changes for one owner.
func (g *Gateway) SubscribeSubtasks(ctx context.Context, ownerID uuid.UUID) (<-chan ports.SubtaskEvent, error) {
	sub, err := g.subscribe(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return sub.subtasks, nil
}

func (g *Gateway) subscribe(ctx context.Context, ownerID uuid.UUID) (*subscriber, error) {
	var startErr error
	g.feed.once.Do(func() {
		startErr = g.startListener()
	})
	if startErr != nil {
		return nil, startErr
	}

	g.feed.mu.Lock()
	defer g.feed.mu.Unlock()
	// Reuse the subscription when the same owner subscribes to both feeds.
	for _, s := range g.feed.subs {
		if s.ownerID == ownerID && s.done == ctx.Done() {
			return s, nil
		}
	}
	sub := &subscriber{
		ownerID:  ownerID,
		tasks:    make(chan ports.TaskEvent, 64),
		subtasks: make(chan ports.SubtaskEvent, 64),
		done:     ctx.Done(),
	}
	g.feed.subs = append(g.feed.subs, sub)

	go func() {
		<-ctx.Done()
		g.feed.mu.Lock()
		defer g.feed.mu.Unlock()
		for i, s := range g.feed.subs {
			if s == sub {
				g.feed.subs = append(g.feed.subs[:i], g.feed.subs[i+1:]...)
				close(sub.tasks)
				close(sub.subtasks)
				return
			}
		}
	}()
	return sub, nil
}

// startListener opens the dedicated LISTEN connection and fans events out
// to subscribers by owner id.
func (g *Gateway) startListener() error {
	listener := pq.NewListener(g.db.DSN(), 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				g.logger.WithError(err).Warnw("Realtime listener event", "event", ev)
			}
		})
	if err := listener.Listen(changeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", changeChannel, err)
	}

	go func() {
		for notification := range listener.Notify {
			if notification == nil {
				// Connection re-established; subscribers refetch on drift.
				continue
			}
			var payload notifyPayload
			if err := json.Unmarshal([]byte(notification.Extra), &payload); err != nil {
				g.logger.WithError(err).Warnw("Bad realtime payload")
				continue
			}
			g.dispatch(payload)
		}
	}()
	return nil
}

func (g *Gateway) dispatch(payload notifyPayload) {
	g.feed.mu.Lock()
	defer g.feed.mu.Unlock()

	for _, sub := range g.feed.subs {
		if sub.ownerID != payload.UserID {
			continue
		}
		switch payload.Table {
		case "tasks":
			ev := ports.TaskEvent{Type: payload.Type, OldID: payload.OldID}
			if len(payload.Row) > 0 {
				var task entities.Task
				if err := json.Unmarshal(payload.Row, &task); err != nil {
					g.logger.WithError(err).Warnw("Bad task row in realtime payload")
					continue
				}
				ev.New = &task
			}
			select {
			case sub.tasks <- ev:
			default:
				g.logger.Warnw("Dropping task event, subscriber backlog full", "user_id", sub.ownerID)
			}
		case "subtasks":
			ev := ports.SubtaskEvent{Type: payload.Type, OldID: payload.OldID, TaskID: payload.TaskID}
			if len(payload.Row) > 0 {
				var subtask entities.Subtask
				if err := json.Unmarshal(payload.Row, &subtask); err != nil {
					g.logger.WithError(err).Warnw("Bad subtask row in realtime payload")
					continue
				}
				ev.New = &subtask
				ev.TaskID = subtask.TaskID
			}
			select {
			case sub.subtasks <- ev:
			default:
				g.logger.Warnw("Dropping subtask event, subscriber backlog full", "user_id", sub.ownerID)
			}
		}
	}
}
