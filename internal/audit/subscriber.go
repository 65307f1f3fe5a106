// Package audit consumes association events from JetStream and writes them to the structured log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/abgdnv/gocatalog/internal/events"
	"github.com/abgdnv/gocatalog/pkg/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "catalog-audit"

// ackableMsg is the part of jetstream.Msg the handler needs.
type ackableMsg interface {
	Subject() string
	Data() []byte
	Ack() error
	Term() error
}

// Start creates or updates the durable consumer and runs cfg.Workers fetch loops until ctx is done.
func Start(ctx context.Context, js jetstream.JetStream, cfg config.SubscriberConfig, logger *slog.Logger) error {
	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		FilterSubject: cfg.Subject,
		Durable:       cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return err
	}
	logger = logger.With("component", "audit", "consumer", cfg.Consumer)
	g, gCtx := errgroup.WithContext(ctx)
	for range cfg.Workers {
		g.Go(func() error {
			return runWorker(gCtx, consumer, cfg, logger)
		})
	}
	return g.Wait()
}

func runWorker(ctx context.Context, consumer jetstream.Consumer, cfg config.SubscriberConfig, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		batch, err := consumer.Fetch(cfg.Batch, jetstream.FetchMaxWait(cfg.Timeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			logger.ErrorContext(ctx, "Failed to fetch messages", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Interval):
			}
			continue
		}
		for msg := range batch.Messages() {
			handleMessage(ctx, msg, logger)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			logger.WarnContext(ctx, "Batch finished with error", "error", err)
		}
	}
}

// handleMessage logs one association event. Undecodable messages are terminated so they are not redelivered.
func handleMessage(ctx context.Context, msg ackableMsg, logger *slog.Logger) {
	var event events.AssociationEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		logger.ErrorContext(ctx, "Failed to decode association event", "error", err, "subject", msg.Subject())
		if err := msg.Term(); err != nil {
			logger.ErrorContext(ctx, "Failed to terminate message", "error", err)
		}
		return
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, event.Carrier)
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "audit "+msg.Subject(),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("product.id", event.ProductID.String())))
	defer span.End()

	storeIDs := make([]string, len(event.StoreIDs))
	for i, id := range event.StoreIDs {
		storeIDs[i] = id.String()
	}
	logger.InfoContext(ctx, "Association changed",
		slog.String("action", Action(msg.Subject())),
		slog.String("product_id", event.ProductID.String()),
		slog.Any("store_ids", storeIDs),
		slog.Time("occurred_at", event.OccurredAt))

	if err := msg.Ack(); err != nil {
		logger.ErrorContext(ctx, "Failed to ack message", "error", err)
	}
}

// Action maps an event subject to add, remove or replace. Unknown subjects are returned unchanged.
func Action(subject string) string {
	switch subject {
	case events.StoreAddedToProductSubject:
		return "add"
	case events.StoreRemovedFromProductSubject:
		return "remove"
	case events.ProductStoresReplacedSubject:
		return "replace"
	default:
		return subject
	}
}
