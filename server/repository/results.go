package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"
	_ "modernc.org/sqlite"

	"robohost/server/domain"
)

var (
	ErrBattleNotFound = errors.New("repository: battle not found")
	ErrEmptyPath      = errors.New("repository: empty db path")
)

// Battle は記録された対戦1件
type Battle struct {
	ID        ksuid.KSUID
	StartedAt time.Time
	Rounds    int32
	Recording string
}

// ResultsIndex は対戦ごとの最終成績をSQLiteに索引する
type ResultsIndex struct {
	db *sql.DB
}

// OpenResultsIndex はpathのデータベースを開く。":memory:" ならメモリ上に作る
func OpenResultsIndex(path string) (*ResultsIndex, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &ResultsIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS battles (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			rounds INTEGER NOT NULL,
			recording TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			battle_id TEXT NOT NULL REFERENCES battles(id) ON DELETE CASCADE,
			robot TEXT NOT NULL,
			rank INTEGER NOT NULL,
			score REAL NOT NULL,
			survival REAL NOT NULL,
			last_survivor_bonus REAL NOT NULL,
			bullet_damage REAL NOT NULL,
			bullet_damage_bonus REAL NOT NULL,
			ram_damage REAL NOT NULL,
			ram_damage_bonus REAL NOT NULL,
			firsts INTEGER NOT NULL,
			seconds INTEGER NOT NULL,
			thirds INTEGER NOT NULL,
			PRIMARY KEY (battle_id, robot)
		);`,
		`CREATE INDEX IF NOT EXISTS results_robot ON results(robot);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (x *ResultsIndex) Close() error { return x.db.Close() }

// RecordBattle は対戦を登録してIDを返す。recordingは交換記録のパスで、なければ空
func (x *ResultsIndex) RecordBattle(ctx context.Context, startedAt time.Time, rounds int32, recording string) (ksuid.KSUID, error) {
	id, err := ksuid.NewRandomWithTime(startedAt)
	if err != nil {
		return ksuid.Nil, err
	}
	_, err = x.db.ExecContext(ctx,
		`INSERT INTO battles(id, started_at, rounds, recording) VALUES(?, ?, ?, ?)`,
		id.String(), startedAt.UnixMilli(), rounds, recording)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("insert battle: %w", err)
	}
	return id, nil
}

// RecordResults はロボットごとの最終成績を書く。同じロボットの再記録は上書きする
func (x *ResultsIndex) RecordResults(ctx context.Context, battle ksuid.KSUID, results []domain.BattleResults) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM battles WHERE id = ?`, battle.String()).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrBattleNotFound, battle)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO results(
		battle_id, robot, rank, score, survival, last_survivor_bonus, bullet_damage,
		bullet_damage_bonus, ram_damage, ram_damage_bonus, firsts, seconds, thirds
	) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range results {
		_, err := stmt.ExecContext(ctx, battle.String(), r.TeamLeaderName, r.Rank, r.Score, r.Survival,
			r.LastSurvivorBonus, r.BulletDamage, r.BulletDamageBonus, r.RamDamage, r.RamDamageBonus,
			r.Firsts, r.Seconds, r.Thirds)
		if err != nil {
			return fmt.Errorf("insert result for %s: %w", r.TeamLeaderName, err)
		}
	}
	return tx.Commit()
}

func (x *ResultsIndex) Battle(ctx context.Context, id ksuid.KSUID) (Battle, error) {
	var (
		b       = Battle{ID: id}
		started int64
	)
	err := x.db.QueryRowContext(ctx, `SELECT started_at, rounds, recording FROM battles WHERE id = ?`, id.String()).
		Scan(&started, &b.Rounds, &b.Recording)
	if errors.Is(err, sql.ErrNoRows) {
		return Battle{}, fmt.Errorf("%w: %s", ErrBattleNotFound, id)
	}
	if err != nil {
		return Battle{}, err
	}
	b.StartedAt = time.UnixMilli(started)
	return b, nil
}

// Standings は対戦の成績を順位順に返す
func (x *ResultsIndex) Standings(ctx context.Context, battle ksuid.KSUID) ([]domain.BattleResults, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT robot, rank, score, survival, last_survivor_bonus,
		bullet_damage, bullet_damage_bonus, ram_damage, ram_damage_bonus, firsts, seconds, thirds
		FROM results WHERE battle_id = ? ORDER BY rank, robot`, battle.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BattleResults
	for rows.Next() {
		var r domain.BattleResults
		if err := rows.Scan(&r.TeamLeaderName, &r.Rank, &r.Score, &r.Survival, &r.LastSurvivorBonus,
			&r.BulletDamage, &r.BulletDamageBonus, &r.RamDamage, &r.RamDamageBonus,
			&r.Firsts, &r.Seconds, &r.Thirds); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Battles は新しい順に最大limit件の対戦を返す
func (x *ResultsIndex) Battles(ctx context.Context, limit int) ([]Battle, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT id, started_at, rounds, recording FROM battles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Battle
	for rows.Next() {
		var (
			b       Battle
			id      string
			started int64
		)
		if err := rows.Scan(&id, &started, &b.Rounds, &b.Recording); err != nil {
			return nil, err
		}
		if b.ID, err = ksuid.Parse(id); err != nil {
			return nil, err
		}
		b.StartedAt = time.UnixMilli(started)
		out = append(out, b)
	}
	return out, rows.Err()
}
