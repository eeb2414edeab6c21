package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskPublish is the asynq task type that delivers one event to subscribers.
const TaskPublish = "event:publish"

// PublishPayload is the task body of TaskPublish.
type PublishPayload struct {
	EventID uuid.UUID `json:"eventId"`
	Topic   string    `json:"topic"`
}

// NewPublishTask builds the delivery task for ev.
func NewPublishTask(ev Event) (*asynq.Task, error) {
	body, err := json.Marshal(PublishPayload{EventID: ev.ID, Topic: ev.Topic})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPublish, body), nil
}

// ParsePublishPayload decodes a TaskPublish body.
func ParsePublishPayload(data []byte) (PublishPayload, error) {
	var p PublishPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return PublishPayload{}, fmt.Errorf("decode publish payload: %w", err)
	}
	if p.EventID == uuid.Nil {
		return PublishPayload{}, fmt.Errorf("decode publish payload: event id missing")
	}
	return p, nil
}

// Enqueuer is the subset of *asynq.Client the scheduler needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskScheduler schedules event delivery as asynq tasks.
type TaskScheduler struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

// Schedule implements DeliveryScheduler. The event id doubles as the task id
// so an event is never queued twice.
func (s TaskScheduler) Schedule(ctx context.Context, ev Event) error {
	if s.Client == nil {
		return nil
	}
	task, err := NewPublishTask(ev)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.TaskID(ev.ID.String())}
	if s.Queue != "" {
		opts = append(opts, asynq.Queue(s.Queue))
	}
	if s.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(s.MaxRetry))
	}
	if s.Timeout > 0 {
		opts = append(opts, asynq.Timeout(s.Timeout))
	}
	_, err = s.Client.EnqueueContext(ctx, task, opts...)
	return err
}
