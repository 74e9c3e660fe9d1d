// Package feed delivers newly ingested message ids to the pipeline via
// Postgres LISTEN/NOTIFY. The insert trigger posts each new row's id; the
// listener holds a dedicated connection and survives connection loss by
// reconnecting.
package feed

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ordersync/internal/store"
)

// Handler receives one message id per notification. It is called serially;
// a slow handler backpressures the feed rather than piling up goroutines.
type Handler func(ctx context.Context, id int64)

// Listener consumes the message notification channel.
type Listener struct {
	dsn       string
	reconnect time.Duration
	handler   Handler
}

func New(dsn string, reconnect time.Duration, h Handler) *Listener {
	if reconnect <= 0 {
		reconnect = 5 * time.Second
	}
	return &Listener{dsn: dsn, reconnect: reconnect, handler: h}
}

// Run listens until ctx is canceled. Connection failures are logged and
// retried; notifications sent while disconnected are lost, which the batch
// command exists to sweep up.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.L().Warn("listener connection lost",
				zap.Duration("retry_in", l.reconnect),
				zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.reconnect):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return eris.Wrap(err, "feed: connect")
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+store.NotifyChannel); err != nil {
		return eris.Wrap(err, "feed: listen")
	}
	zap.L().Info("listening for messages", zap.String("channel", store.NotifyChannel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return eris.Wrap(err, "feed: wait")
		}
		id, err := parseID(n.Payload)
		if err != nil {
			zap.L().Warn("ignoring malformed notification",
				zap.String("payload", n.Payload),
				zap.Error(err))
			continue
		}
		l.handler(ctx, id)
	}
}

func parseID(payload string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		return 0, eris.Wrap(err, "feed: parse notification payload")
	}
	return id, nil
}
