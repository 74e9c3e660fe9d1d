package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ordersync/internal/model"
)

// NotifyChannel is the Postgres channel the message insert trigger posts to.
// The payload is the new row's id.
const NotifyChannel = "email_extracts"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres is the production Store backed by a pgx connection pool.
type Postgres struct {
	pool Pool
}

// NewPostgres connects a pool to the given DSN and pings it.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests pass a pgxmock pool.
func NewPostgresWithPool(pool Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// orderColumn picks the column used to keep candidate ordering stable.
func orderColumn(table string) string {
	if table == TableMessages {
		return "id"
	}
	return "entry_id"
}

func applyFilters[T interface {
	Where(pred any, args ...any) T
}](b T, filters []Filter) T {
	for _, f := range filters {
		switch f.Op {
		case OpContains:
			b = b.Where(sq.ILike{f.Field: "%" + fmt.Sprint(f.Value) + "%"})
		default:
			b = b.Where(sq.Eq{f.Field: f.Value})
		}
	}
	return b
}

func (s *Postgres) SelectRows(ctx context.Context, table string, filters []Filter) ([]model.Row, error) {
	b := psql.Select("*").From(table)
	b = applyFilters(b, filters)
	query, args, err := b.OrderBy(orderColumn(table)).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "store: build select")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "store: select from %s", table)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, eris.Wrapf(err, "store: scan rows from %s", table)
	}

	out := make([]model.Row, len(maps))
	for i, m := range maps {
		out[i] = model.Row(m)
	}
	return out, nil
}

func (s *Postgres) UpdateRows(ctx context.Context, table string, predicate []Filter, payload model.Row) (int64, error) {
	if len(payload) == 0 {
		return 0, nil
	}
	b := psql.Update(table).SetMap(map[string]any(payload))
	b = applyFilters(b, predicate)
	query, args, err := b.ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "store: build update")
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "store: update %s", table)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) InsertRows(ctx context.Context, table string, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	cols := columnUnion(rows)
	b := psql.Insert(table).Columns(cols...)
	for _, r := range rows {
		vals := make([]any, len(cols))
		for i, c := range cols {
			vals[i] = r[c]
		}
		b = b.Values(vals...)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return eris.Wrap(err, "store: build insert")
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "store: insert into %s", table)
	}
	return nil
}

func (s *Postgres) InsertMessage(ctx context.Context, msg *model.Message) (int64, error) {
	query, args, err := psql.
		Insert(TableMessages).
		Columns("from_email", "subject", "msg", "user_email", "user_id", "category").
		Values(msg.From, msg.Subject, msg.Body, msg.UserEmail, msg.UserID, msg.Category).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "store: build message insert")
	}

	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, eris.Wrap(err, "store: insert message")
	}
	return id, nil
}

func (s *Postgres) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	query, args, err := psql.
		Select("id", "from_email", "subject", "msg", "user_email", "user_id", "category").
		From(TableMessages).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "store: build message select")
	}

	var m model.Message
	err = s.pool.QueryRow(ctx, query, args...).
		Scan(&m.ID, &m.From, &m.Subject, &m.Body, &m.UserEmail, &m.UserID, &m.Category)
	if err != nil {
		return nil, eris.Wrapf(err, "store: get message %d", id)
	}
	return &m, nil
}

func (s *Postgres) RecentMessages(ctx context.Context, limit int) ([]model.Message, error) {
	query, args, err := psql.
		Select("id", "from_email", "subject", "msg", "user_email", "user_id", "category").
		From(TableMessages).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "store: build messages select")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: select messages")
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.From, &m.Subject, &m.Body, &m.UserEmail, &m.UserID, &m.Category); err != nil {
			return nil, eris.Wrap(err, "store: scan message")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate messages")
	}
	return out, nil
}

// Migrate creates the three pipeline tables and the insert notification
// trigger on the message table.
func (s *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: migrate")
		}
	}
	return nil
}

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS email_extracts (
		id BIGSERIAL PRIMARY KEY,
		from_email TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		msg TEXT NOT NULL DEFAULT '',
		user_email TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		received_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_details (
		entry_id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
		user_email TEXT,
		user_id TEXT,
		retailer TEXT,
		order_id TEXT,
		order_date TEXT,
		order_total TEXT,
		tax_total TEXT,
		shipping_total TEXT,
		discount_total TEXT,
		shipping_address TEXT,
		zip_code TEXT,
		archive_flag BOOLEAN,
		item_desc TEXT,
		item_price TEXT,
		item_sku TEXT,
		item_qty TEXT,
		item_color TEXT,
		item_size TEXT,
		item_discount TEXT,
		image_name TEXT,
		item_tax TEXT,
		item_shipping TEXT,
		shipping_method TEXT,
		tracking_num TEXT,
		expected_deliv_date TEXT,
		status TEXT,
		carrier TEXT,
		actual_deliv_date TEXT,
		inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS returns_refunds (
		entry_id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
		created_at TEXT,
		retailer TEXT,
		return_id TEXT,
		return_method TEXT,
		return_tracking_num TEXT,
		return_carrier TEXT,
		return_confirmation TEXT,
		return_dropoff_deadline TEXT,
		return_deadline TEXT,
		exp_refund_amt TEXT,
		refund_method TEXT,
		refund_status TEXT,
		exp_refund_date TEXT,
		act_refund_date TEXT,
		refund_amt TEXT,
		order_id TEXT,
		qr_label TEXT,
		user_email TEXT,
		status TEXT,
		return_item_desc TEXT,
		return_item_sku TEXT,
		return_item_qty TEXT,
		return_item_size TEXT,
		return_item_color TEXT,
		return_reason TEXT,
		return_condition TEXT,
		item_amt TEXT,
		ship_amt TEXT,
		taxes_amt TEXT,
		other_amt TEXT,
		inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE OR REPLACE FUNCTION notify_email_extract() RETURNS trigger AS $fn$
	BEGIN
		PERFORM pg_notify('email_extracts', NEW.id::text);
		RETURN NEW;
	END;
	$fn$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS email_extracts_notify ON email_extracts`,
	`CREATE TRIGGER email_extracts_notify
		AFTER INSERT ON email_extracts
		FOR EACH ROW EXECUTE FUNCTION notify_email_extract()`,
}
