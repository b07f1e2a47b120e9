// Package sqlite persists rooms, users, bans and chat history in SQLite and
// implements core.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/storage/sqlite/migrations"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

const defaultListLimit = 200

var _ core.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Open opens the database file at path. The schema is not touched; call
// Migrate before serving.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	log.Info().Str("module", "storage.sqlite").Str("path", path).Msg("opened")
	return &Store{db: db}, nil
}

// Migrate applies the embedded schema migrations that have not run yet.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	applied, err := applyMigrations(ctx, s.db, migrations.FS)
	if err != nil {
		return applied, fmt.Errorf("run migrations: %w", err)
	}
	return applied, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) RoomPasswordHash(ctx context.Context, id domain.RoomID) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM rooms WHERE id = ?`, int64(id)).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("room password hash: %w", err)
	}
	return hash, nil
}

// InsertBan records a ban. Banning twice keeps the first record.
func (s *Store) InsertBan(ctx context.Context, ban domain.Ban) error {
	username := strings.TrimSpace(ban.Username)
	if username == "" {
		return domain.ErrUsernameEmpty
	}
	createdAt := ban.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bans (username, room_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (username, room_id) DO NOTHING`,
		username, int64(ban.RoomID), toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	return nil
}

func (s *Store) IsBanned(ctx context.Context, username string, id domain.RoomID) (bool, error) {
	var banned bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bans WHERE username = ? AND room_id = ?)`,
		username, int64(id),
	).Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("is banned: %w", err)
	}
	return banned, nil
}

func (s *Store) SetUserRole(ctx context.Context, username string, role domain.Role) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, role, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (username) DO UPDATE SET role = excluded.role`,
		username, role.String(), toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	return nil
}

func (s *Store) TouchLastSeen(ctx context.Context, username string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, last_seen, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (username) DO UPDATE SET last_seen = excluded.last_seen`,
		username, toMillis(at), toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

// ActiveUsers lists usernames seen at or after since, most recent first.
func (s *Store) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username FROM users WHERE last_seen >= ? ORDER BY last_seen DESC, username ASC`,
		toMillis(since),
	)
	if err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	return names, nil
}

func (s *Store) InsertMessage(ctx context.Context, msg domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, username, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, int64(msg.RoomID), msg.Username, msg.Body, toMillis(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns the newest limit messages of a room, oldest first.
func (s *Store) ListMessages(ctx context.Context, id domain.RoomID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, username, body, created_at FROM (
		   SELECT id, room_id, username, body, created_at FROM messages
		   WHERE room_id = ?
		   ORDER BY created_at DESC, id DESC
		   LIMIT ?
		 ) ORDER BY created_at ASC, id ASC`,
		int64(id), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.Message, 0)
	for rows.Next() {
		var (
			m      domain.Message
			roomID int64
			at     int64
		)
		if err := rows.Scan(&m.ID, &roomID, &m.Username, &m.Body, &at); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.RoomID = domain.RoomID(roomID)
		m.CreatedAt = fromMillis(at)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// CreateRoom stores a room. A non-empty password is bcrypt-hashed first.
func (s *Store) CreateRoom(ctx context.Context, in domain.NewRoom) (domain.Room, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Room{}, fmt.Errorf("room name is required")
	}
	var hash string
	if in.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.Room{}, fmt.Errorf("hash room password: %w", err)
		}
		hash = string(b)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (name, description, category, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		name, strings.TrimSpace(in.Description), strings.TrimSpace(in.Category), hash, toMillis(now),
	)
	if err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}
	return domain.Room{
		ID:          domain.RoomID(id),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Locked:      hash != "",
		CreatedAt:   fromMillis(toMillis(now)),
	}, nil
}

// ListRooms returns official rooms first, then by id.
func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, category, password_hash != '', is_official, created_at
		 FROM rooms ORDER BY is_official DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]domain.Room, 0)
	for rows.Next() {
		var (
			r  domain.Room
			id int64
			at int64
		)
		if err := rows.Scan(&id, &r.Name, &r.Description, &r.Category, &r.Locked, &r.Official, &at); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		r.ID = domain.RoomID(id)
		r.CreatedAt = fromMillis(at)
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

func (s *Store) SetRoomOfficial(ctx context.Context, id domain.RoomID, official bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE rooms SET is_official = ? WHERE id = ?`, official, int64(id))
	if err != nil {
		return fmt.Errorf("set room official: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set room official: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) Stats(ctx context.Context, activeSince, weekSince time.Time) (domain.Stats, error) {
	var st domain.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM users),
		   (SELECT COUNT(*) FROM rooms),
		   (SELECT COUNT(*) FROM messages),
		   (SELECT COUNT(*) FROM users WHERE last_seen >= ?)`,
		toMillis(activeSince),
	).Scan(&st.Users, &st.Rooms, &st.Messages, &st.Active24h)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date(created_at / 1000, 'unixepoch') AS day, COUNT(*)
		 FROM messages WHERE created_at >= ?
		 GROUP BY day ORDER BY day`,
		toMillis(weekSince),
	)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats week: %w", err)
	}
	defer rows.Close()

	st.Week = make([]domain.DayCount, 0, 7)
	for rows.Next() {
		var dc domain.DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return domain.Stats{}, fmt.Errorf("scan day: %w", err)
		}
		st.Week = append(st.Week, dc)
	}
	if err := rows.Err(); err != nil {
		return domain.Stats{}, fmt.Errorf("stats week: %w", err)
	}
	return st, nil
}
