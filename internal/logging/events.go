package logging

import (
	"github.com/charmbracelet/log"

	"github.com/nibzard/taskhub/internal/notify"
)

// EventLogger reports store change events on a console logger.
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger returns an event logger writing to logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Handle is a notify.Handler. Additions and deletions are logged at info,
// everything else at debug.
func (e *EventLogger) Handle(ev notify.Event) error {
	fields := eventFields(ev)
	switch ev.Kind {
	case notify.TaskAdded:
		e.logger.Info("Task added", fields...)
	case notify.TaskDeleted:
		e.logger.Info("Task deleted", fields...)
	case notify.TaskUpdated:
		e.logger.Debug("Task updated", fields...)
	case notify.TasksReloaded:
		e.logger.Debug("Tasks reloaded", fields...)
	default:
		e.logger.Debug(ev.Kind.String(), fields...)
	}
	return nil
}

// SubscriberErrors returns a notify.ErrorHandler that logs failing
// subscribers as warnings.
func SubscriberErrors(logger *log.Logger) notify.ErrorHandler {
	return func(ev notify.Event, err error) {
		fields := append(eventFields(ev), "err", err)
		logger.Warn("Subscriber failed", fields...)
	}
}

func eventFields(ev notify.Event) []any {
	fields := []any{"seq", ev.Seq, "kind", ev.Kind.String()}
	if ev.TaskID != "" {
		fields = append(fields, "task_id", ev.TaskID)
	}
	if ev.Task != nil {
		fields = append(fields, "title", ev.Task.Title, "status", string(ev.Task.Status))
	}
	return fields
}
