// Package nats carries article ingestion events from the API process to the
// indexing worker.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mkorolev/helpcenter-rag/internal/core/domain"
	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/resilience"
)

const (
	DefaultSubject = "articles.events"

	// All worker replicas join one queue group so each event is handled once.
	queueGroup = "indexers"
)

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	Subject  string
	Executor *resilience.Executor
	Logger   *slog.Logger
}

func Connect(url string, opts Options) (*Queue, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return New(conn, opts), nil
}

func New(conn *nats.Conn, opts Options) *Queue {
	subject := opts.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	executor := opts.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultPolicy())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: executor,
		logger:   logger,
	}
}

func (q *Queue) PublishArticleEvent(ctx context.Context, event domain.ArticleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal article event: %w", err)
	}

	call := func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("publish article event: %w", err)
		}
		return q.conn.FlushTimeout(2 * time.Second)
	}
	return q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
}

// SubscribeArticleEvents delivers events to handler until ctx is cancelled.
// Handler errors are logged, not redelivered; re-ingesting an article is the
// recovery path for a failed indexing run.
func (q *Queue) SubscribeArticleEvents(ctx context.Context, handler func(context.Context, domain.ArticleEvent) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
		var event domain.ArticleEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			q.logger.Error("article_event_decode_failed", "subject", q.subject, "error", err)
			return
		}
		if event.ArticleID == "" {
			q.logger.Error("article_event_missing_id", "subject", q.subject, "kind", event.Kind)
			return
		}
		if err := handler(ctx, event); err != nil {
			q.logger.Error("article_event_handler_failed",
				"subject", q.subject,
				"kind", event.Kind,
				"article_id", event.ArticleID,
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe article events: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		q.logger.Warn("nats_drain_failed", "subject", q.subject, "error", err)
	}
	return nil
}

func (q *Queue) Close() {
	if q.conn != nil && !q.conn.IsClosed() {
		q.conn.Close()
	}
}
