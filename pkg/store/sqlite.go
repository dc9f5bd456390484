package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/asaavedra/printscan/pkg/profile"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // driver SQLite en Go puro
)

const schema = `
CREATE TABLE IF NOT EXISTS printers (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	ip                     TEXT NOT NULL UNIQUE,
	hostname               TEXT,
	mac_address            TEXT UNIQUE,
	serial_number          TEXT UNIQUE,
	brand                  TEXT,
	model                  TEXT,
	sys_object_id          TEXT,
	monitoring_profile     TEXT NOT NULL DEFAULT 'desconocido'
		CHECK (monitoring_profile IN ('level_real', 'estado', 'desconocido')),
	location               TEXT,
	notes                  TEXT,
	is_active              INTEGER NOT NULL DEFAULT 1,
	last_checked_at        INTEGER,
	last_check_duration_ms INTEGER,
	avg_check_duration_ms  INTEGER,
	created_at             INTEGER NOT NULL,
	updated_at             INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_printers_serial_norm ON printers (lower(trim(serial_number)));

CREATE TABLE IF NOT EXISTS printer_snmp_configs (
	printer_id    INTEGER PRIMARY KEY REFERENCES printers(id) ON DELETE CASCADE,
	version       TEXT NOT NULL DEFAULT '2c',
	community     TEXT NOT NULL DEFAULT 'public',
	username      TEXT,
	auth_protocol TEXT,
	auth_password TEXT,
	priv_protocol TEXT,
	priv_password TEXT,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS printer_capabilities (
	printer_id           INTEGER PRIMARY KEY REFERENCES printers(id) ON DELETE CASCADE,
	can_read_levels      INTEGER NOT NULL DEFAULT 0,
	can_read_states      INTEGER NOT NULL DEFAULT 0,
	supports_printer_mib INTEGER NOT NULL DEFAULT 0,
	detected_at          INTEGER
);
`

const printerColumns = `id, ip, hostname, mac_address, serial_number, brand, model, sys_object_id,
	monitoring_profile, location, notes, is_active, last_checked_at,
	last_check_duration_ms, avg_check_duration_ms, created_at, updated_at`

// SQLite implementa Store sobre modernc.org/sqlite. Los instantes se guardan
// como milisegundos Unix UTC.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewSQLite abre (o crea) la base en path. Vacío o ":memory:" usa una base
// en memoria.
func NewSQLite(path string, log zerolog.Logger) (*SQLite, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Una sola conexión: SQLite serializa escrituras y una base :memory:
	// existe solo dentro de su conexión.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("SQLite store ready")

	return &SQLite{db: db, now: time.Now, log: log}, nil
}

// SetClock reemplaza el reloj usado para created_at/updated_at
func (s *SQLite) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

// dbValue convierte punteros nil en NULL y los instantes a milisegundos
func dbValue(v any) any {
	switch x := v.(type) {
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *time.Time:
		return nullMillis(x)
	case time.Time:
		return toMillis(x)
	}
	return v
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return strPtr(v.String)
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// isUniqueViolation misma detección por mensaje que usa el driver para
// UNIQUE y PRIMARY KEY
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrinter(row rowScanner) (*Printer, error) {
	var (
		p                                                Printer
		hostname, mac, serial, brand, model, sysObjectID sql.NullString
		location, notes                                  sql.NullString
		lastChecked, lastDuration, avgDuration           sql.NullInt64
		monitoringProfile                                string
		createdAt, updatedAt                             int64
	)

	err := row.Scan(
		&p.ID, &p.IP, &hostname, &mac, &serial, &brand, &model, &sysObjectID,
		&monitoringProfile, &location, &notes, &p.IsActive, &lastChecked,
		&lastDuration, &avgDuration, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan printer: %w", err)
	}

	p.Hostname = nullString(hostname)
	p.MAC = nullString(mac)
	p.Serial = nullString(serial)
	p.Brand = nullString(brand)
	p.Model = nullString(model)
	p.SysObjectID = nullString(sysObjectID)
	p.MonitoringProfile = profile.MonitoringProfile(monitoringProfile)
	p.Location = nullString(location)
	p.Notes = nullString(notes)
	p.LastCheckedAt = nullTime(lastChecked)
	p.LastCheckDurationMs = nullInt(lastDuration)
	p.AvgCheckDurationMs = nullInt(avgDuration)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)

	return &p, nil
}

func (s *SQLite) findOne(ctx context.Context, where string, args ...any) (*Printer, error) {
	query := "SELECT " + printerColumns + " FROM printers WHERE " + where + " ORDER BY id LIMIT 1"
	return scanPrinter(s.db.QueryRowContext(ctx, query, args...))
}

func (s *SQLite) FindByID(ctx context.Context, id int64) (*Printer, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *SQLite) FindByIP(ctx context.Context, ip string) (*Printer, error) {
	return s.findOne(ctx, "ip = ?", ip)
}

func (s *SQLite) FindBySerial(ctx context.Context, serial string) (*Printer, error) {
	key := NormalizeSerial(serial)
	if key == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, "lower(trim(serial_number)) = ?", key)
}

func (s *SQLite) List(ctx context.Context) ([]*Printer, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+printerColumns+" FROM printers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var printers []*Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, err
		}
		printers = append(printers, p)
	}

	return printers, rows.Err()
}

// Upsert inserta o actualiza por ip en una sola sentencia, conservando
// created_at de la fila existente
func (s *SQLite) Upsert(ctx context.Context, p *Printer) error {
	now := toMillis(s.now())

	query := `
		INSERT INTO printers (
			ip, hostname, mac_address, serial_number, brand, model, sys_object_id,
			monitoring_profile, location, notes, is_active, last_checked_at,
			last_check_duration_ms, avg_check_duration_ms, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET
			hostname = excluded.hostname,
			mac_address = excluded.mac_address,
			serial_number = excluded.serial_number,
			brand = excluded.brand,
			model = excluded.model,
			sys_object_id = excluded.sys_object_id,
			monitoring_profile = excluded.monitoring_profile,
			location = excluded.location,
			notes = excluded.notes,
			is_active = excluded.is_active,
			last_checked_at = excluded.last_checked_at,
			last_check_duration_ms = excluded.last_check_duration_ms,
			avg_check_duration_ms = excluded.avg_check_duration_ms,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`

	monitoringProfile := p.MonitoringProfile
	if !monitoringProfile.Valid() {
		monitoringProfile = profile.Desconocido
	}

	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query,
		p.IP, dbValue(p.Hostname), dbValue(p.MAC), dbValue(p.Serial), dbValue(p.Brand),
		dbValue(p.Model), dbValue(p.SysObjectID), string(monitoringProfile), dbValue(p.Location),
		dbValue(p.Notes), p.IsActive, dbValue(p.LastCheckedAt), dbValue(p.LastCheckDurationMs),
		dbValue(p.AvgCheckDurationMs), now, now,
	).Scan(&p.ID, &createdAt, &updatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to upsert printer: %w", err)
	}

	p.MonitoringProfile = monitoringProfile
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return nil
}

func (s *SQLite) UpdateFields(ctx context.Context, id int64, fields Fields) error {
	values, err := fields.normalize()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for _, name := range names {
		sets = append(sets, name+" = ?")
		args = append(args, dbValue(values[name]))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, toMillis(s.now()), id)

	result, err := s.db.ExecContext(ctx,
		"UPDATE printers SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update printer %d: %w", id, err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) MarkStale(ctx context.Context, cutoff time.Time) (int, error) {
	ms := toMillis(cutoff)

	result, err := s.db.ExecContext(ctx, `
		UPDATE printers SET is_active = 0, updated_at = ?
		WHERE is_active = 1 AND (
			(last_checked_at IS NOT NULL AND last_checked_at < ?)
			OR (last_checked_at IS NULL AND created_at < ?)
		)`, toMillis(s.now()), ms, ms)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale printers: %w", err)
	}

	n, err := result.RowsAffected()
	return int(n), err
}

func (s *SQLite) GetConfig(ctx context.Context, printerID int64) (*SnmpConfig, error) {
	var (
		cfg                           SnmpConfig
		username, authProto, authPass sql.NullString
		privProto, privPass           sql.NullString
		createdAt, updatedAt          int64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT printer_id, version, community, username, auth_protocol, auth_password,
			priv_protocol, priv_password, created_at, updated_at
		FROM printer_snmp_configs WHERE printer_id = ?`, printerID,
	).Scan(&cfg.PrinterID, &cfg.Version, &cfg.Community, &username, &authProto, &authPass,
		&privProto, &privPass, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snmp config: %w", err)
	}

	cfg.Username = nullString(username)
	cfg.AuthProtocol = nullString(authProto)
	cfg.AuthPassword = nullString(authPass)
	cfg.PrivProtocol = nullString(privProto)
	cfg.PrivPassword = nullString(privPass)
	cfg.CreatedAt = fromMillis(createdAt)
	cfg.UpdatedAt = fromMillis(updatedAt)

	return &cfg, nil
}

func (s *SQLite) SaveConfig(ctx context.Context, cfg SnmpConfig) error {
	now := toMillis(s.now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO printer_snmp_configs (
			printer_id, version, community, username, auth_protocol, auth_password,
			priv_protocol, priv_password, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(printer_id) DO UPDATE SET
			version = excluded.version,
			community = excluded.community,
			username = excluded.username,
			auth_protocol = excluded.auth_protocol,
			auth_password = excluded.auth_password,
			priv_protocol = excluded.priv_protocol,
			priv_password = excluded.priv_password,
			updated_at = excluded.updated_at`,
		cfg.PrinterID, cfg.Version, cfg.Community, dbValue(cfg.Username), dbValue(cfg.AuthProtocol),
		dbValue(cfg.AuthPassword), dbValue(cfg.PrivProtocol), dbValue(cfg.PrivPassword), now, now,
	)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to save snmp config: %w", err)
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func (s *SQLite) GetCapability(ctx context.Context, printerID int64) (*profile.Capability, error) {
	var (
		c          profile.Capability
		detectedAt sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT can_read_levels, can_read_states, supports_printer_mib, detected_at
		FROM printer_capabilities WHERE printer_id = ?`, printerID,
	).Scan(&c.CanReadLevels, &c.CanReadStates, &c.SupportsPrinterMib, &detectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capability: %w", err)
	}

	if t := nullTime(detectedAt); t != nil {
		c.DetectedAt = *t
	}
	return &c, nil
}

func (s *SQLite) SaveCapability(ctx context.Context, printerID int64, c profile.Capability) error {
	var detectedAt any
	if !c.DetectedAt.IsZero() {
		detectedAt = toMillis(c.DetectedAt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO printer_capabilities (
			printer_id, can_read_levels, can_read_states, supports_printer_mib, detected_at
		) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(printer_id) DO UPDATE SET
			can_read_levels = excluded.can_read_levels,
			can_read_states = excluded.can_read_states,
			supports_printer_mib = excluded.supports_printer_mib,
			detected_at = excluded.detected_at`,
		printerID, c.CanReadLevels, c.CanReadStates, c.SupportsPrinterMib, detectedAt,
	)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to save capability: %w", err)
	}
	return nil
}

var _ Store = (*SQLite)(nil)
