// Package storage persists simulation runs and their snapshots in sqlite or
// postgres through database/sql.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"gopkg.in/yaml.v3"

	"hexplanet/config"
	"hexplanet/simulation"
	"hexplanet/storage/migrations"
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Run is one persisted simulation: the settings it was built from plus
// the seeds broken out for listing.
type Run struct {
	ID            uuid.UUID
	Name          string
	GridLevel     int
	PlateSeed     int64
	CrustSeed     int64
	DirectionSeed int64
	Settings      config.Settings
	CreatedAt     time.Time
}

// SnapshotInfo describes a stored snapshot without its blob.
type SnapshotInfo struct {
	RunID       uuid.UUID
	Step        int
	Cells       int
	Plates      int
	TotalMass   float64
	MantleMass  float64
	CreatedMass float64
	Checksum    string
	Size        int
	CreatedAt   time.Time
}

// Store is a run and snapshot store.
type Store struct {
	db      *sql.DB
	dialect string
	log     *slog.Logger
}

// Dialect picks the driver for a DSN: postgres URLs go through pgx,
// everything else is a sqlite3 path or file: URI.
func Dialect(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite3"
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialect := Dialect(dsn)
	driver := dialect
	if dialect == "postgres" {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", dialect, err)
	}
	if dialect == "sqlite3" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", dialect, err)
	}

	if err := migrate(ctx, db, dialect, logger); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("storage ready", "dialect", dialect)
	return &Store{db: db, dialect: dialect, log: logger}, nil
}

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

func migrate(ctx context.Context, db *sql.DB, dialect string, logger *slog.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{logger})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

type gooseLogger struct{ log *slog.Logger }

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	panic(fmt.Sprintf(format, v...))
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns "sqlite3" or "postgres".
func (s *Store) Dialect() string { return s.dialect }

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateRun records a new run for cfg.
func (s *Store) CreateRun(ctx context.Context, name string, cfg config.Settings) (Run, error) {
	settings, err := yaml.Marshal(cfg)
	if err != nil {
		return Run{}, fmt.Errorf("encoding settings: %w", err)
	}
	run := Run{
		ID:            uuid.New(),
		Name:          name,
		GridLevel:     cfg.Grid.Level,
		PlateSeed:     cfg.Plates.Seed,
		CrustSeed:     cfg.Crust.Seed,
		DirectionSeed: cfg.Plates.DirectionSeed,
		Settings:      cfg,
		CreatedAt:     time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (id, name, grid_level, plate_seed, crust_seed, direction_seed, settings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID.String(), run.Name, run.GridLevel, run.PlateSeed, run.CrustSeed, run.DirectionSeed,
		string(settings), run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("creating run: %w", err)
	}
	s.log.Info("run created", "run", run.ID, "name", name, "level", run.GridLevel)
	return run, nil
}

const runColumns = `id, name, grid_level, plate_seed, crust_seed, direction_seed, settings, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run       Run
		id        string
		settings  string
		createdAt int64
	)
	if err := row.Scan(&id, &run.Name, &run.GridLevel, &run.PlateSeed, &run.CrustSeed, &run.DirectionSeed, &settings, &createdAt); err != nil {
		return Run{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Run{}, fmt.Errorf("run id %q: %w", id, err)
	}
	run.ID = parsed
	run.Settings = config.Default()
	if err := yaml.Unmarshal([]byte(settings), &run.Settings); err != nil {
		return Run{}, fmt.Errorf("run %s settings: %w", id, err)
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	return run, nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("loading run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and all its snapshots.
func (s *Store) DeleteRun(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM snapshots WHERE run_id = ?`), id.String()); err != nil {
		return fmt.Errorf("deleting snapshots of %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM runs WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// SaveSnapshot stores snap under its step, replacing an existing one.
func (s *Store) SaveSnapshot(ctx context.Context, runID uuid.UUID, snap *simulation.Snapshot) (SnapshotInfo, error) {
	blob, err := EncodeSnapshot(snap)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("encoding step %d: %w", snap.Step, err)
	}
	info := SnapshotInfo{
		RunID:       runID,
		Step:        snap.Step,
		Cells:       len(snap.Cells),
		Plates:      len(snap.Plates),
		TotalMass:   snap.TotalMass(),
		MantleMass:  snap.MantleMass,
		CreatedMass: snap.CreatedMass,
		Checksum:    Checksum(blob),
		Size:        len(blob),
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO snapshots (run_id, step, cells, plates, total_mass, mantle_mass, created_mass, checksum, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, step) DO UPDATE SET
			cells = excluded.cells,
			plates = excluded.plates,
			total_mass = excluded.total_mass,
			mantle_mass = excluded.mantle_mass,
			created_mass = excluded.created_mass,
			checksum = excluded.checksum,
			data = excluded.data,
			created_at = excluded.created_at`),
		runID.String(), info.Step, info.Cells, info.Plates, info.TotalMass, info.MantleMass, info.CreatedMass,
		info.Checksum, blob, info.CreatedAt.UnixNano(),
	)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("saving step %d of run %s: %w", snap.Step, runID, err)
	}
	s.log.Debug("snapshot saved", "run", runID, "step", snap.Step, "bytes", len(blob))
	return info, nil
}

// LoadSnapshot loads the snapshot of a run at step, verifying its checksum.
func (s *Store) LoadSnapshot(ctx context.Context, runID uuid.UUID, step int) (*simulation.Snapshot, error) {
	var blob []byte
	var sum string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data, checksum FROM snapshots WHERE run_id = ? AND step = ?`),
		runID.String(), step).Scan(&blob, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("step %d of run %s: %w", step, runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading step %d of run %s: %w", step, runID, err)
	}
	if got := Checksum(blob); got != sum {
		return nil, fmt.Errorf("step %d of run %s: %w: checksum %s, stored %s", step, runID, ErrCorrupt, got, sum)
	}
	return DecodeSnapshot(blob)
}

// LatestSnapshot loads the highest stored step of a run.
func (s *Store) LatestSnapshot(ctx context.Context, runID uuid.UUID) (*simulation.Snapshot, error) {
	var step sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT MAX(step) FROM snapshots WHERE run_id = ?`), runID.String()).Scan(&step)
	if err != nil {
		return nil, fmt.Errorf("finding latest step of run %s: %w", runID, err)
	}
	if !step.Valid {
		return nil, fmt.Errorf("snapshots of run %s: %w", runID, ErrNotFound)
	}
	return s.LoadSnapshot(ctx, runID, int(step.Int64))
}

// ListSnapshots describes the stored snapshots of a run in step order.
func (s *Store) ListSnapshots(ctx context.Context, runID uuid.UUID) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT step, cells, plates, total_mass, mantle_mass, created_mass, checksum, LENGTH(data), created_at
		FROM snapshots WHERE run_id = ? ORDER BY step`), runID.String())
	if err != nil {
		return nil, fmt.Errorf("listing snapshots of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		info := SnapshotInfo{RunID: runID}
		var createdAt int64
		if err := rows.Scan(&info.Step, &info.Cells, &info.Plates, &info.TotalMass, &info.MantleMass,
			&info.CreatedMass, &info.Checksum, &info.Size, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		info.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}
