package recorder

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sievekit/sieve/internal/constants"
	"github.com/sievekit/sieve/internal/duckdb"
	ierrors "github.com/sievekit/sieve/internal/errors"
	"github.com/sievekit/sieve/internal/safe"
	"github.com/sievekit/sieve/pkg/version"
)

// DuckDBSink persists features into a single report database instead of
// per-recorder text files. Each recorder gets a table f_{name} holding
// the decoded offset, the full forensic path, and the escaped and
// canonical feature forms. Histograms become h_{name}_{suffix} tables.
type DuckDBSink struct {
	db        *sql.DB
	log       zerolog.Logger
	sessionID string

	mu     sync.Mutex
	tables map[string]*sql.Stmt
}

// NewDuckDBSink opens (or creates) report.duckdb in outdir and records
// the run metadata.
func NewDuckDBSink(outdir, inputPath, sessionID string, log zerolog.Logger) (*DuckDBSink, error) {
	db, err := duckdb.Open(filepath.Join(outdir, constants.ReportDatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("recorder: open report database: %w", err)
	}
	s := &DuckDBSink{
		db:        db,
		log:       log.With().Str("component", "duckdbsink").Logger(),
		sessionID: sessionID,
		tables:    make(map[string]*sql.Stmt),
	}
	if err := s.init(inputPath); err != nil {
		ierrors.DeferClose(s.log, db, "closing report database after init failure")
		return nil, err
	}
	return s, nil
}

func (s *DuckDBSink) init(inputPath string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS db_info (
			session VARCHAR,
			version VARCHAR,
			input VARCHAR,
			created TIMESTAMP DEFAULT current_timestamp
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("recorder: init report database: %w", err)
		}
	}
	_, err := s.db.Exec(`INSERT INTO db_info (session, version, input) VALUES (?, ?, ?)`,
		s.sessionID, version.Version, inputPath)
	if err != nil {
		return fmt.Errorf("recorder: record session: %w", err)
	}
	return nil
}

// WriteRecord inserts one feature row, creating the recorder's table on
// first use.
func (s *DuckDBSink) WriteRecord(recorder string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ins, err := s.insertLocked(recorder)
	if err != nil {
		return err
	}
	offset, clamped := safe.Uint64ToInt64(rec.Addr.Offset)
	if clamped {
		s.log.Warn().Str("addr", rec.Addr.String()).Msg("offset exceeds BIGINT range, clamped")
	}
	if _, err := ins.Exec(offset, rec.Addr.Path, rec.Feature, rec.FeatureUTF8, rec.Context); err != nil {
		return fmt.Errorf("recorder: insert feature for %s: %w", recorder, err)
	}
	return nil
}

// WriteHistogram materializes the histogram as a table. Whole-feature
// histograms are grouped in SQL directly from the feature table;
// pattern histograms insert the precomputed entries because the regexp
// transform lives in Go.
func (s *DuckDBSink) WriteHistogram(recorder string, def HistogramDef, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	suffix := def.Suffix
	if suffix == "" {
		suffix = "histogram"
	}
	htable := "h_" + sqlName(recorder) + "_" + sqlName(suffix)
	ftable := "f_" + sqlName(recorder)

	if _, err := s.db.Exec(`DROP TABLE IF EXISTS ` + htable); err != nil {
		return fmt.Errorf("recorder: reset histogram table %s: %w", htable, err)
	}
	if def.Pattern == "" && !def.Lowercase {
		if _, ok := s.tables[recorder]; !ok {
			// No features were written, so there is nothing to group.
			_, err := s.db.Exec(`CREATE TABLE ` + htable + ` (count BIGINT, feature_utf8 VARCHAR)`)
			return err
		}
		q := `CREATE TABLE ` + htable + ` AS
			SELECT count(*) AS count, feature_utf8
			FROM ` + ftable + `
			GROUP BY feature_utf8
			ORDER BY count DESC, feature_utf8`
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("recorder: group histogram %s: %w", htable, err)
		}
		return nil
	}

	if _, err := s.db.Exec(`CREATE TABLE ` + htable + ` (count BIGINT, feature_utf8 VARCHAR)`); err != nil {
		return fmt.Errorf("recorder: create histogram table %s: %w", htable, err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("recorder: begin histogram insert %s: %w", htable, err)
	}
	defer ierrors.DeferRollback(s.log, tx)
	ins, err := tx.Prepare(`INSERT INTO ` + htable + ` (count, feature_utf8) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("recorder: prepare histogram insert %s: %w", htable, err)
	}
	defer ierrors.DeferClose(s.log, ins, "closing histogram insert statement")
	for _, e := range entries {
		count, _ := safe.Uint64ToInt64(e.Count)
		if _, err := ins.Exec(count, e.Feature); err != nil {
			return fmt.Errorf("recorder: insert histogram row %s: %w", htable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("recorder: commit histogram %s: %w", htable, err)
	}
	return nil
}

// Shutdown closes the prepared statements and the database.
func (s *DuckDBSink) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, ins := range s.tables {
		ierrors.DeferClose(s.log, ins, "closing insert statement for "+name)
	}
	s.tables = make(map[string]*sql.Stmt)
	return s.db.Close()
}

func (s *DuckDBSink) insertLocked(recorder string) (*sql.Stmt, error) {
	if ins, ok := s.tables[recorder]; ok {
		return ins, nil
	}
	table := "f_" + sqlName(recorder)
	q := `CREATE TABLE IF NOT EXISTS ` + table + ` (
		offset BIGINT,
		path VARCHAR,
		feature_eutf8 VARCHAR,
		feature_utf8 VARCHAR,
		context_eutf8 VARCHAR
	)`
	if _, err := s.db.Exec(q); err != nil {
		return nil, fmt.Errorf("recorder: create feature table %s: %w", table, err)
	}
	ins, err := s.db.Prepare(`INSERT INTO ` + table +
		` (offset, path, feature_eutf8, feature_utf8, context_eutf8) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("recorder: prepare insert for %s: %w", table, err)
	}
	s.tables[recorder] = ins
	s.log.Debug().Str("table", table).Msg("created feature table")
	return ins, nil
}

// sqlName maps a recorder name to a safe SQL identifier fragment.
func sqlName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
