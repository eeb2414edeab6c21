package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-bundles/internal/events"
	"github.com/noah-isme/toko-bundles/internal/obs"
	"github.com/noah-isme/toko-bundles/internal/resilience"
)

const (
	// HeaderEventID carries the published event id.
	HeaderEventID = "X-Event-ID"
	// HeaderTopic carries the event topic.
	HeaderTopic = "X-Event-Topic"
	// HeaderTimestamp carries the unix signing timestamp.
	HeaderTimestamp = "X-Timestamp"
	// HeaderSignature carries the hex HMAC-SHA256 signature.
	HeaderSignature = "X-Signature"
)

// EventSource loads events and records their publication.
type EventSource interface {
	GetDomainEvent(ctx context.Context, id uuid.UUID) (events.Event, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Publisher delivers domain events to the configured webhook. It is the
// asynq handler for events.TaskPublish.
type Publisher struct {
	Source    EventSource
	URL       string
	Secret    string
	HTTP      *resilience.HTTPClient
	Replay    ReplayProtector
	ReplayTTL time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Enabled reports whether a webhook target is configured.
func (p *Publisher) Enabled() bool {
	return p != nil && strings.TrimSpace(p.URL) != ""
}

// ProcessTask implements asynq.Handler.
func (p *Publisher) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := events.ParsePublishPayload(task.Payload())
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if !p.Enabled() {
		p.Logger.Debug().Str("event_id", payload.EventID.String()).Msg("event publishing disabled")
		return nil
	}
	if p.Source == nil {
		return events.ErrStoreUnavailable
	}
	ev, err := p.Source.GetDomainEvent(ctx, payload.EventID)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}
	return p.Publish(ctx, ev)
}

// Publish posts a single event to the webhook and marks it published.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	ctx, span := otel.Tracer("notify.Publisher").Start(ctx, "Publisher.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", ev.ID.String()),
		attribute.String("event.topic", ev.Topic),
	)

	start := time.Now()
	if p.Replay != nil && p.ReplayTTL > 0 {
		ok, err := p.Replay.Acquire(ctx, replayKey(ev.ID.String()), p.ReplayTTL)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if !ok {
			span.AddEvent("publish replay prevented")
			p.record("replayed", start)
			return nil
		}
	}

	status, err := p.deliver(ctx, ev)
	if err != nil {
		span.RecordError(err)
		if p.Replay != nil && p.ReplayTTL > 0 {
			_ = p.Replay.Release(ctx, replayKey(ev.ID.String()))
		}
		p.record("failed", start)
		p.Logger.Warn().Err(err).Str("event_id", ev.ID.String()).Str("topic", ev.Topic).Int("status", status).Msg("event publish failed")
		return err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	p.record("delivered", start)

	if p.Source != nil {
		if err := p.Source.MarkPublished(ctx, ev.ID, p.now()); err != nil {
			p.Logger.Error().Err(err).Str("event_id", ev.ID.String()).Msg("mark event published")
		}
	}
	p.Logger.Info().Str("event_id", ev.ID.String()).Str("topic", ev.Topic).Int("status", status).Msg("event published")
	return nil
}

func (p *Publisher) deliver(ctx context.Context, ev events.Event) (int, error) {
	if err := validateURL(p.URL); err != nil {
		return 0, err
	}
	body, err := json.Marshal(struct {
		EventID     string          `json:"eventId"`
		Topic       string          `json:"topic"`
		AggregateID string          `json:"aggregateId"`
		Data        json.RawMessage `json:"data"`
		OccurredAt  time.Time       `json:"occurredAt"`
	}{
		EventID:     ev.ID.String(),
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID,
		Data:        ev.Payload,
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	ts := p.now().Unix()
	eventID := ev.ID.String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "toko-bundles-events/1.0")
	req.Header.Set(HeaderEventID, eventID)
	req.Header.Set(HeaderTopic, ev.Topic)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, ComputeSignature(p.Secret, ts, eventID, body))

	client := p.HTTP
	if client == nil {
		client = &resilience.HTTPClient{Client: HTTPClient(5 * time.Second), MaxAttempts: 1}
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		var statusErr *resilience.StatusError
		if errors.As(err, &statusErr) {
			return statusErr.StatusCode, err
		}
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (p *Publisher) record(result string, start time.Time) {
	obs.IncCounterVec(obs.EventPublishTotal, result)
	if obs.EventPublishLatency != nil {
		obs.EventPublishLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature as HMAC-SHA256 over
// "<ts>.<eventID>.<body>" keyed by the shared secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an otel-instrumented client for webhook delivery.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
