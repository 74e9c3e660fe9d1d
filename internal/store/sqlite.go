package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ordersync/internal/model"
)

// SQLite is a single-file Store for local runs and development. It has no
// notification channel, so the listener command requires Postgres.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database file at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: ping sqlite")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) filters(b sq.SelectBuilder, filters []Filter) sq.SelectBuilder {
	for _, f := range filters {
		switch f.Op {
		case OpContains:
			b = b.Where(sq.Expr(
				"LOWER("+f.Field+") LIKE '%' || LOWER(?) || '%'", fmt.Sprint(f.Value)))
		default:
			b = b.Where(sq.Eq{f.Field: f.Value})
		}
	}
	return b
}

func (s *SQLite) SelectRows(ctx context.Context, table string, filters []Filter) ([]model.Row, error) {
	b := sq.Select("*").From(table)
	b = s.filters(b, filters)
	query, args, err := b.OrderBy(orderColumn(table)).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "store: build select")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "store: select from %s", table)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "store: columns")
	}

	var out []model.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "store: scan row from %s", table)
		}
		row := make(model.Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "store: iterate %s", table)
	}
	return out, nil
}

func (s *SQLite) UpdateRows(ctx context.Context, table string, predicate []Filter, payload model.Row) (int64, error) {
	if len(payload) == 0 {
		return 0, nil
	}
	b := sq.Update(table).SetMap(map[string]any(payload))
	for _, f := range predicate {
		switch f.Op {
		case OpContains:
			b = b.Where(sq.Expr(
				"LOWER("+f.Field+") LIKE '%' || LOWER(?) || '%'", fmt.Sprint(f.Value)))
		default:
			b = b.Where(sq.Eq{f.Field: f.Value})
		}
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "store: build update")
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "store: update %s", table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "store: rows affected")
	}
	return n, nil
}

func (s *SQLite) InsertRows(ctx context.Context, table string, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	// SQLite has no server-side uuid default, so entry ids are generated
	// here for the detail tables.
	if table != TableMessages {
		for i, r := range rows {
			if !r.Has("entry_id") {
				r = r.Clone()
				r["entry_id"] = uuid.NewString()
				rows[i] = r
			}
		}
	}

	cols := columnUnion(rows)
	b := sq.Insert(table).Columns(cols...)
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

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "store: insert into %s", table)
	}
	return nil
}

func (s *SQLite) InsertMessage(ctx context.Context, msg *model.Message) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO email_extracts (from_email, subject, msg, user_email, user_id, category)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.From, msg.Subject, msg.Body, msg.UserEmail, msg.UserID, msg.Category)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert message")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "store: message id")
	}
	return id, nil
}

func (s *SQLite) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	var m model.Message
	err := s.db.QueryRowContext(ctx,
		`SELECT id, from_email, subject, msg, user_email, user_id, category
		 FROM email_extracts WHERE id = ?`, id).
		Scan(&m.ID, &m.From, &m.Subject, &m.Body, &m.UserEmail, &m.UserID, &m.Category)
	if err != nil {
		return nil, eris.Wrapf(err, "store: get message %d", id)
	}
	return &m, nil
}

func (s *SQLite) RecentMessages(ctx context.Context, limit int) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_email, subject, msg, user_email, user_id, category
		 FROM email_extracts ORDER BY id DESC LIMIT ?`, limit)
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

func (s *SQLite) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: migrate")
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS email_extracts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_email TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		msg TEXT NOT NULL DEFAULT '',
		user_email TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		received_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS order_details (
		entry_id TEXT PRIMARY KEY,
		user_email TEXT, user_id TEXT, retailer TEXT, order_id TEXT,
		order_date TEXT, order_total TEXT, tax_total TEXT,
		shipping_total TEXT, discount_total TEXT, shipping_address TEXT,
		zip_code TEXT, archive_flag INTEGER,
		item_desc TEXT, item_price TEXT, item_sku TEXT, item_qty TEXT,
		item_color TEXT, item_size TEXT, item_discount TEXT, image_name TEXT,
		item_tax TEXT, item_shipping TEXT, shipping_method TEXT,
		tracking_num TEXT, expected_deliv_date TEXT, status TEXT,
		carrier TEXT, actual_deliv_date TEXT,
		inserted_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS returns_refunds (
		entry_id TEXT PRIMARY KEY,
		created_at TEXT, retailer TEXT, return_id TEXT, return_method TEXT,
		return_tracking_num TEXT, return_carrier TEXT,
		return_confirmation TEXT, return_dropoff_deadline TEXT,
		return_deadline TEXT, exp_refund_amt TEXT, refund_method TEXT,
		refund_status TEXT, exp_refund_date TEXT, act_refund_date TEXT,
		refund_amt TEXT, order_id TEXT, qr_label TEXT, user_email TEXT,
		status TEXT,
		return_item_desc TEXT, return_item_sku TEXT, return_item_qty TEXT,
		return_item_size TEXT, return_item_color TEXT, return_reason TEXT,
		return_condition TEXT, item_amt TEXT, ship_amt TEXT, taxes_amt TEXT,
		other_amt TEXT,
		inserted_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
}
