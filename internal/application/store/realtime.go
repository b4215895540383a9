package store

import (
	"context"
	"fmt"

	"github.com/auratask/core/internal/ports"
)

// Listen subscribes to the backend's realtime change feed for the active
// identity and applies events until the context is cancelled. Events from
// other sessions feed the same merge path as canonical rows from local
// mutations, so tabs converge without polling. Events are applied in
// arrival order, last write wins.
func (s *Store) Listen(ctx context.Context) error {
	owner, err := s.requireIdentity()
	if err != nil {
		return err
	}

	taskEvents, err := s.gateway.SubscribeTasks(ctx, owner)
	if err != nil {
		return fmt.Errorf("subscribe tasks: %w", err)
	}
	subtaskEvents, err := s.gateway.SubscribeSubtasks(ctx, owner)
	if err != nil {
		return fmt.Errorf("subscribe subtasks: %w", err)
	}

	go s.consume(ctx, taskEvents, subtaskEvents)
	return nil
}

func (s *Store) consume(ctx context.Context, tasks <-chan ports.TaskEvent, subtasks <-chan ports.SubtaskEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-tasks:
			if !ok {
				return
			}
			s.applyTaskEvent(ev)
		case ev, ok := <-subtasks:
			if !ok {
				return
			}
			s.applySubtaskEvent(ev)
		}
	}
}

func (s *Store) applyTaskEvent(ev ports.TaskEvent) {
	switch ev.Type {
	case ports.EventInsert, ports.EventUpdate:
		s.mergeTask(ev.New)
	case ports.EventDelete:
		s.mu.Lock()
		if idx := s.taskIndex(ev.OldID); idx >= 0 {
			s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
		}
		s.mu.Unlock()
	}
}

func (s *Store) applySubtaskEvent(ev ports.SubtaskEvent) {
	switch ev.Type {
	case ports.EventInsert, ports.EventUpdate:
		s.mergeSubtask(ev.New)
	case ports.EventDelete:
		s.mu.Lock()
		if idx := s.taskIndex(ev.TaskID); idx >= 0 {
			subs := s.tasks[idx].Subtasks
			for i := range subs {
				if subs[i].ID == ev.OldID {
					s.tasks[idx].Subtasks = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		}
		s.mu.Unlock()
	}
}
