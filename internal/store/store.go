// Package store persists messages in SQLite. Inserts are idempotent on
// message_id and enforced by the primary key, so concurrent deliveries of
// the same message resolve to exactly one row.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/inboxd/internal/message"
)

// Options configures a Store.
type Options struct {
	// TopSenders caps Stats.MessagesPerSender. Zero means no cap.
	TopSenders int
	// Now overrides the clock used for created_at.
	Now func() time.Time
	// Logger receives debug detail that does not change a call's result.
	Logger *slog.Logger
}

type Store struct {
	db         *sql.DB
	topSenders int
	now        func() time.Time
	logger     *slog.Logger
}

// New wraps a bootstrapped database (see storage.OpenSQLite).
func New(db *sql.DB, opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{db: db, topSenders: opts.TopSenders, now: now, logger: logger}
}

// Insert stores msg unless a row with the same message_id exists. It is a
// single statement; the primary key decides the race between concurrent
// deliveries.
func (s *Store) Insert(ctx context.Context, msg message.Message) (InsertOutcome, error) {
	if msg.ID == "" {
		return InsertOutcome{}, fmt.Errorf("message_id is empty")
	}

	hash := ContentHash(msg)
	createdAt := message.FormatStorage(s.now())

	var text any
	if msg.Text != nil {
		text = *msg.Text
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO messages(message_id, from_number, to_number, ts, text, created_at, content_hash)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(message_id) DO NOTHING;
`, msg.ID, msg.From, msg.To, message.FormatStorage(msg.TS), text, createdAt, hash)
	if err != nil {
		return InsertOutcome{}, unavailable("insert message", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return InsertOutcome{}, unavailable("insert message rows affected", err)
	}
	if n > 0 {
		return InsertOutcome{Result: Inserted}, nil
	}

	out := InsertOutcome{Result: Duplicate}
	var stored string
	err = s.db.QueryRowContext(ctx, `SELECT content_hash FROM messages WHERE message_id = ?;`, msg.ID).Scan(&stored)
	if err != nil {
		// The insert is already decided; only the divergence signal is lost.
		s.logger.DebugContext(ctx, "divergence check failed", "message_id", msg.ID, "error", err)
		return out, nil
	}
	out.Diverged = stored != hash
	return out, nil
}

// List returns the page of messages matching f, ordered by ts then
// message_id. Total and Items come from the same read transaction.
func (s *Store) List(ctx context.Context, f Filter, p Page) (ListResult, error) {
	if err := p.Validate(); err != nil {
		return ListResult{}, err
	}

	where, args := f.clause()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ListResult{}, unavailable("begin list", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`+where+`;`, args...).Scan(&total); err != nil {
		return ListResult{}, unavailable("count messages", err)
	}

	pageArgs := append(append([]any{}, args...), p.Limit, p.Offset)
	rows, err := tx.QueryContext(ctx, `
SELECT message_id, from_number, to_number, ts, text, created_at
FROM messages`+where+`
ORDER BY ts ASC, message_id ASC
LIMIT ? OFFSET ?;
`, pageArgs...)
	if err != nil {
		return ListResult{}, unavailable("list messages", err)
	}
	defer rows.Close()

	items := make([]message.Message, 0, p.Limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return ListResult{}, err
		}
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, unavailable("list messages", err)
	}

	return ListResult{Items: items, Total: total}, nil
}

// Stats aggregates the store in one read transaction.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, unavailable("begin stats", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		st           Stats
		first, last  sql.NullString
		senderCounts = []SenderCount{}
	)
	err = tx.QueryRowContext(ctx, `
SELECT COUNT(*), COUNT(DISTINCT from_number), MIN(ts), MAX(ts)
FROM messages;
`).Scan(&st.TotalMessages, &st.SendersCount, &first, &last)
	if err != nil {
		return Stats{}, unavailable("aggregate messages", err)
	}
	if first.Valid {
		t, err := message.ParseStorage(first.String)
		if err != nil {
			return Stats{}, err
		}
		st.FirstMessageTS = &t
	}
	if last.Valid {
		t, err := message.ParseStorage(last.String)
		if err != nil {
			return Stats{}, err
		}
		st.LastMessageTS = &t
	}

	// LIMIT -1 is unbounded in SQLite.
	limit := -1
	if s.topSenders > 0 {
		limit = s.topSenders
	}
	rows, err := tx.QueryContext(ctx, `
SELECT from_number, COUNT(*) AS n
FROM messages
GROUP BY from_number
ORDER BY n DESC, from_number ASC
LIMIT ?;
`, limit)
	if err != nil {
		return Stats{}, unavailable("count senders", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sc SenderCount
		if err := rows.Scan(&sc.From, &sc.Count); err != nil {
			return Stats{}, unavailable("scan sender count", err)
		}
		senderCounts = append(senderCounts, sc)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, unavailable("count senders", err)
	}
	st.MessagesPerSender = senderCounts

	return st, nil
}

// Ping checks that the database answers and the messages table exists.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM messages LIMIT 1;`).Scan(&one); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return unavailable("ping", err)
	}
	return nil
}

func (f Filter) clause() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.From != "" {
		conds = append(conds, "from_number = ?")
		args = append(args, f.From)
	}
	if f.Since != nil {
		conds = append(conds, "ts >= ?")
		args = append(args, message.FormatStorage(*f.Since))
	}
	if f.Q != "" {
		// LIKE folds ASCII case only.
		conds = append(conds, `text LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(f.Q)+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(r rowScanner) (message.Message, error) {
	var (
		msg        message.Message
		text       sql.NullString
		tsS        string
		createdAtS string
	)
	if err := r.Scan(&msg.ID, &msg.From, &msg.To, &tsS, &text, &createdAtS); err != nil {
		return message.Message{}, unavailable("scan message", err)
	}
	ts, err := message.ParseStorage(tsS)
	if err != nil {
		return message.Message{}, err
	}
	createdAt, err := message.ParseStorage(createdAtS)
	if err != nil {
		return message.Message{}, err
	}
	msg.TS = ts
	msg.CreatedAt = createdAt
	if text.Valid {
		msg.Text = &text.String
	}
	return msg, nil
}

// ContentHash is the hex BLAKE3 digest of the fields a sender controls.
// Fields are NUL separated and text carries a presence marker so that a
// null text and an empty text hash differently.
func ContentHash(msg message.Message) string {
	h := blake3.New()
	_, _ = io.WriteString(h, msg.ID)
	_, _ = h.Write([]byte{0})
	_, _ = io.WriteString(h, msg.From)
	_, _ = h.Write([]byte{0})
	_, _ = io.WriteString(h, msg.To)
	_, _ = h.Write([]byte{0})
	_, _ = io.WriteString(h, message.FormatStorage(msg.TS))
	_, _ = h.Write([]byte{0})
	if msg.Text != nil {
		_, _ = h.Write([]byte{1})
		_, _ = io.WriteString(h, *msg.Text)
	} else {
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
