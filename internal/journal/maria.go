package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Maria реализует Journal для MariaDB/MySQL.
// Использует таблицу chop_journal.
type Maria struct {
	db *sql.DB
}

// NewMaria подключается к базе и создаёт таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения (user:pass@tcp(host:port)/dbname?parseTime=true)
func NewMaria(dsn string) (*Maria, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	j := &Maria{db: db}
	if err := j.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return j, nil
}

func (m *Maria) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS chop_journal (
			id          CHAR(36)     PRIMARY KEY,
			player_id   CHAR(36)     NOT NULL,
			player_name VARCHAR(64)  NOT NULL,
			world       VARCHAR(64)  NOT NULL,
			species     VARCHAR(32)  NOT NULL,
			origin_x    INT          NOT NULL,
			origin_y    INT          NOT NULL,
			origin_z    INT          NOT NULL,
			state       VARCHAR(32)  NOT NULL,
			reason      VARCHAR(255) NOT NULL DEFAULT '',
			logs        INT          NOT NULL,
			leaves      INT          NOT NULL,
			drops       INT          NOT NULL,
			axis_x      FLOAT        NOT NULL,
			axis_y      FLOAT        NOT NULL,
			axis_z      FLOAT        NOT NULL,
			started_at  DATETIME(6)  NOT NULL,
			finished_at DATETIME(6)  NOT NULL,
			INDEX idx_finished_at (finished_at),
			INDEX idx_player (player_id)
		) ENGINE=InnoDB
	`
	if _, err := m.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы chop_journal: %w", err)
	}
	return nil
}

// Append сохраняет запись
func (m *Maria) Append(ctx context.Context, r Record) error {
	query := `
		INSERT INTO chop_journal (id, player_id, player_name, world, species,
			origin_x, origin_y, origin_z, state, reason, logs, leaves, drops,
			axis_x, axis_y, axis_z, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := m.db.ExecContext(ctx, query,
		r.ID, r.PlayerID, r.PlayerName, r.World, r.Species,
		r.Origin.X, r.Origin.Y, r.Origin.Z, r.State, r.Reason, r.Logs, r.Leaves, r.Drops,
		r.Axis[0], r.Axis[1], r.Axis[2], r.StartedAt.UTC(), r.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи %s: %w", r.ID, err)
	}
	return nil
}

// Recent возвращает последние записи
func (m *Maria) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = 1000
	}
	query := `
		SELECT id, player_id, player_name, world, species, origin_x, origin_y, origin_z,
			state, reason, logs, leaves, drops, axis_x, axis_y, axis_z, started_at, finished_at
		FROM chop_journal ORDER BY finished_at DESC LIMIT ?
	`
	rows, err := m.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var started, finished time.Time
		err := rows.Scan(&r.ID, &r.PlayerID, &r.PlayerName, &r.World, &r.Species,
			&r.Origin.X, &r.Origin.Y, &r.Origin.Z, &r.State, &r.Reason, &r.Logs, &r.Leaves, &r.Drops,
			&r.Axis[0], &r.Axis[1], &r.Axis[2], &started, &finished)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора строки журнала: %w", err)
		}
		r.StartedAt, r.FinishedAt = started, finished
		out = append(out, r)
	}
	return out, rows.Err()
}

func (m *Maria) Close() error {
	return m.db.Close()
}
