package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const handleTimeout = 30 * time.Second

// Connect dials NATS and keeps reconnecting for as long as the process runs.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("social-feed"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
}

type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

func (p *NatsPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: Subject(e.Type),
		Data:    data,
		Header:  nats.Header{},
	}
	// The consumer continues the request's trace from these headers.
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	slog.Debug("Publishing event", "subject", msg.Subject, "post_id", e.PostID)
	return p.nc.PublishMsg(msg)
}

// Subscribe delivers every feed event to handler, one span per message.
func Subscribe(nc *nats.Conn, handler Handler) (*nats.Subscription, error) {
	tracer := otel.Tracer("social-feed/events")

	return nc.Subscribe(SubjectAll, func(msg *nats.Msg) {
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Header))
		ctx, span := tracer.Start(ctx, "handle "+msg.Subject, trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()

		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid event")
			slog.Error("Invalid event format", "subject", msg.Subject, "error", err)
			return
		}
		span.SetAttributes(attribute.String("post.id", e.PostID), attribute.String("event.type", string(e.Type)))

		ctx, cancel := context.WithTimeout(ctx, handleTimeout)
		defer cancel()
		if err := handler(ctx, e); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Event handler failed", "type", e.Type, "post_id", e.PostID, "error", err)
		}
	})
}
