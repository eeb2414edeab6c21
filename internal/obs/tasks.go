package obs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TaskMiddleware wraps asynq handlers with a span, a structured log line and
// the task_processed_total counter.
func TaskMiddleware(logger zerolog.Logger) asynq.MiddlewareFunc {
	tracer := otel.Tracer("worker")
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			taskID, _ := asynq.GetTaskID(ctx)
			retry, _ := asynq.GetRetryCount(ctx)
			taskLogger := logger.With().Str("task", t.Type()).Str("task_id", taskID).Int("retry", retry).Logger()
			ctx = taskLogger.WithContext(ctx)

			ctx, span := tracer.Start(ctx, "task "+t.Type(),
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(attribute.String("task.type", t.Type()), attribute.Int("task.retry", retry)))
			defer span.End()

			start := time.Now()
			err := next.ProcessTask(ctx, t)
			result := taskResult(err)
			IncCounterVec(TaskProcessedTotal, t.Type(), result)

			evt := taskLogger.Info()
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				evt = taskLogger.Warn().Err(err)
			}
			evt.Str("result", result).Int64("duration_ms", time.Since(start).Milliseconds()).Msg("task_processed")
			return err
		})
	}
}

func taskResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, asynq.SkipRetry):
		return "skipped"
	default:
		return "error"
	}
}

// AsynqLogger adapts a zerolog logger to asynq.Logger.
type AsynqLogger struct {
	Logger zerolog.Logger
}

var _ asynq.Logger = AsynqLogger{}

func (l AsynqLogger) Debug(args ...interface{}) { l.Logger.Debug().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Info(args ...interface{})  { l.Logger.Info().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Warn(args ...interface{})  { l.Logger.Warn().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Error(args ...interface{}) { l.Logger.Error().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Fatal(args ...interface{}) { l.Logger.Fatal().Msg(fmt.Sprint(args...)) }
