package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/panel-curation-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteStore creates a new SQLite curation store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		log:    logger,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS releases (
		id TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		source TEXT NOT NULL,
		config_source TEXT NOT NULL DEFAULT '',
		release_date DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS clinical_indications (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		test_method TEXT NOT NULL DEFAULT '',
		pending INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		UNIQUE(code, name)
	);

	CREATE TABLE IF NOT EXISTS panels (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		super INTEGER NOT NULL DEFAULT 0,
		test_directory INTEGER NOT NULL DEFAULT 0,
		custom INTEGER NOT NULL DEFAULT 0,
		pending INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS super_panel_children (
		super_panel_id TEXT NOT NULL REFERENCES panels(id),
		child_panel_id TEXT NOT NULL REFERENCES panels(id),
		PRIMARY KEY(super_panel_id, child_panel_id)
	);

	CREATE TABLE IF NOT EXISTS genes (
		id TEXT PRIMARY KEY,
		hgnc_id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS panel_genes (
		id TEXT PRIMARY KEY,
		panel_id TEXT NOT NULL REFERENCES panels(id),
		gene_id TEXT NOT NULL REFERENCES genes(id),
		confidence TEXT NOT NULL DEFAULT '',
		mode_of_inheritance TEXT NOT NULL DEFAULT '',
		mode_of_pathogenicity TEXT NOT NULL DEFAULT '',
		penetrance TEXT NOT NULL DEFAULT '',
		justification TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		pending INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		UNIQUE(panel_id, gene_id)
	);

	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		indication_id TEXT NOT NULL REFERENCES clinical_indications(id),
		panel_id TEXT NOT NULL REFERENCES panels(id),
		current INTEGER NOT NULL DEFAULT 1,
		pending INTEGER NOT NULL DEFAULT 0,
		config_source TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		UNIQUE(indication_id, panel_id)
	);

	CREATE TABLE IF NOT EXISTS release_links (
		id TEXT PRIMARY KEY,
		link_id TEXT NOT NULL REFERENCES links(id),
		release_id TEXT NOT NULL REFERENCES releases(id),
		created_at DATETIME NOT NULL,
		UNIQUE(link_id, release_id)
	);

	CREATE TABLE IF NOT EXISTS audit_notes (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		gene_id TEXT NOT NULL REFERENCES genes(id),
		accession TEXT NOT NULL,
		reference_genome TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(gene_id, accession, reference_genome)
	);

	CREATE TABLE IF NOT EXISTS transcript_releases (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		version TEXT NOT NULL,
		reference_genome TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transcript_release_links (
		id TEXT PRIMARY KEY,
		transcript_id TEXT NOT NULL REFERENCES transcripts(id),
		release_id TEXT NOT NULL REFERENCES transcript_releases(id),
		match_version INTEGER,
		match_base INTEGER,
		default_clinical INTEGER,
		created_at DATETIME NOT NULL,
		UNIQUE(transcript_id, release_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ci_code ON clinical_indications(code);
	CREATE INDEX IF NOT EXISTS idx_panels_external ON panels(external_id);
	CREATE INDEX IF NOT EXISTS idx_links_indication ON links(indication_id);
	CREATE INDEX IF NOT EXISTS idx_links_panel ON links(panel_id);
	CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_notes(entity_type, entity_id);
	`

	_, err := db.Exec(schema)
	return err
}

// Begin starts a new transaction.
func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteTx implements Tx over a sql.Tx.
type sqliteTx struct {
	tx   *sql.Tx
	done bool
}

func (t *sqliteTx) Commit() error {
	t.done = true
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	if t.done {
		return nil
	}
	return t.tx.Rollback()
}

// Releases

func (t *sqliteTx) GetRelease(ctx context.Context, source, version string) (*domain.Release, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, version, source, config_source, release_date, created_at
		FROM releases WHERE source = ? AND version = ?`, source, version)
	var r domain.Release
	err := row.Scan(&r.ID, &r.Version, &r.Source, &r.ConfigSource, &r.Date, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning release: %w", err)
	}
	return &r, nil
}

func (t *sqliteTx) CreateRelease(ctx context.Context, release *domain.Release) error {
	if release.CreatedAt.IsZero() {
		release.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO releases (id, version, source, config_source, release_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		release.ID, release.Version, release.Source, release.ConfigSource, release.Date, release.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating release: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListReleaseVersions(ctx context.Context, source string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT version FROM releases WHERE source = ?`, source)
	if err != nil {
		return nil, fmt.Errorf("listing release versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning release version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (t *sqliteTx) LatestReleaseForLink(ctx context.Context, linkID string) (*domain.Release, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT r.id, r.version, r.source, r.config_source, r.release_date, r.created_at
		FROM releases r
		JOIN release_links rl ON rl.release_id = r.id
		WHERE rl.link_id = ?
		ORDER BY rl.created_at DESC
		LIMIT 1`, linkID)

	var r domain.Release
	err := row.Scan(&r.ID, &r.Version, &r.Source, &r.ConfigSource, &r.Date, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest release for link: %w", err)
	}
	return &r, nil
}

// Clinical indications

func (t *sqliteTx) scanIndication(row *sql.Row) (*domain.ClinicalIndication, error) {
	var ci domain.ClinicalIndication
	err := row.Scan(&ci.ID, &ci.Code, &ci.Name, &ci.TestMethod, &ci.Pending, &ci.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning clinical indication: %w", err)
	}
	return &ci, nil
}

const indicationColumns = `id, code, name, test_method, pending, created_at`

func (t *sqliteTx) GetIndication(ctx context.Context, code, name string) (*domain.ClinicalIndication, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+indicationColumns+` FROM clinical_indications WHERE code = ? AND name = ?`, code, name)
	return t.scanIndication(row)
}

func (t *sqliteTx) GetIndicationByID(ctx context.Context, id string) (*domain.ClinicalIndication, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+indicationColumns+` FROM clinical_indications WHERE id = ?`, id)
	return t.scanIndication(row)
}

func (t *sqliteTx) CreateIndication(ctx context.Context, ci *domain.ClinicalIndication) error {
	if ci.CreatedAt.IsZero() {
		ci.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO clinical_indications (id, code, name, test_method, pending, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ci.ID, ci.Code, ci.Name, ci.TestMethod, ci.Pending, ci.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating clinical indication: %w", err)
	}
	return nil
}

func (t *sqliteTx) listIndications(ctx context.Context, query string, args ...interface{}) ([]*domain.ClinicalIndication, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing clinical indications: %w", err)
	}
	defer rows.Close()

	var out []*domain.ClinicalIndication
	for rows.Next() {
		var ci domain.ClinicalIndication
		if err := rows.Scan(&ci.ID, &ci.Code, &ci.Name, &ci.TestMethod, &ci.Pending, &ci.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning clinical indication: %w", err)
		}
		out = append(out, &ci)
	}
	return out, rows.Err()
}

func (t *sqliteTx) ListIndicationsByCode(ctx context.Context, code string) ([]*domain.ClinicalIndication, error) {
	return t.listIndications(ctx,
		`SELECT `+indicationColumns+` FROM clinical_indications WHERE code = ? ORDER BY created_at`, code)
}

func (t *sqliteTx) ListIndications(ctx context.Context) ([]*domain.ClinicalIndication, error) {
	return t.listIndications(ctx,
		`SELECT `+indicationColumns+` FROM clinical_indications ORDER BY created_at`)
}

func (t *sqliteTx) UpdateIndicationTestMethod(ctx context.Context, id, testMethod string, pending bool) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE clinical_indications SET test_method = ?, pending = ? WHERE id = ?`,
		testMethod, pending, id)
	if err != nil {
		return fmt.Errorf("updating test method: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Panels

const panelColumns = `id, external_id, name, version, source, super, test_directory, custom, pending, created_at`

func scanPanelRow(s interface{ Scan(...interface{}) error }) (*domain.Panel, error) {
	var p domain.Panel
	err := s.Scan(&p.ID, &p.ExternalID, &p.Name, &p.Version, &p.Source,
		&p.Super, &p.TestDirectory, &p.Custom, &p.Pending, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *sqliteTx) getPanel(ctx context.Context, query string, args ...interface{}) (*domain.Panel, error) {
	row := t.tx.QueryRowContext(ctx, query, args...)
	p, err := scanPanelRow(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning panel: %w", err)
	}
	return p, nil
}

func (t *sqliteTx) GetPanelByIdentity(ctx context.Context, externalID, name, version string) (*domain.Panel, error) {
	return t.getPanel(ctx,
		`SELECT `+panelColumns+` FROM panels WHERE external_id = ? AND name = ? AND version = ? AND custom = 0`,
		externalID, name, version)
}

func (t *sqliteTx) GetAdHocPanelByName(ctx context.Context, name string) (*domain.Panel, error) {
	return t.getPanel(ctx,
		`SELECT `+panelColumns+` FROM panels WHERE name = ? AND custom = 1`, name)
}

func (t *sqliteTx) GetPanelByID(ctx context.Context, id string) (*domain.Panel, error) {
	return t.getPanel(ctx, `SELECT `+panelColumns+` FROM panels WHERE id = ?`, id)
}

func (t *sqliteTx) CreatePanel(ctx context.Context, panel *domain.Panel) error {
	if panel.CreatedAt.IsZero() {
		panel.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO panels (id, external_id, name, version, source, super, test_directory, custom, pending, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		panel.ID, panel.ExternalID, panel.Name, panel.Version, panel.Source,
		panel.Super, panel.TestDirectory, panel.Custom, panel.Pending, panel.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating panel: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListPanelsByExternalID(ctx context.Context, externalID string, super bool) ([]*domain.Panel, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+panelColumns+` FROM panels WHERE external_id = ? AND super = ?`, externalID, super)
	if err != nil {
		return nil, fmt.Errorf("listing panels by external id: %w", err)
	}
	defer rows.Close()

	var out []*domain.Panel
	for rows.Next() {
		p, err := scanPanelRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning panel: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *sqliteTx) CreateSuperPanelMembership(ctx context.Context, superPanelID, childPanelID string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO super_panel_children (super_panel_id, child_panel_id)
		VALUES (?, ?)`, superPanelID, childPanelID)
	if err != nil {
		return fmt.Errorf("creating super panel membership: %w", err)
	}
	return nil
}

// Genes

func (t *sqliteTx) GetGeneByHGNC(ctx context.Context, hgncID string) (*domain.Gene, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT id, hgnc_id, symbol, created_at FROM genes WHERE hgnc_id = ?`, hgncID)
	var g domain.Gene
	err := row.Scan(&g.ID, &g.HGNCID, &g.Symbol, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning gene: %w", err)
	}
	return &g, nil
}

func (t *sqliteTx) GetGeneByID(ctx context.Context, id string) (*domain.Gene, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT id, hgnc_id, symbol, created_at FROM genes WHERE id = ?`, id)
	var g domain.Gene
	err := row.Scan(&g.ID, &g.HGNCID, &g.Symbol, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning gene: %w", err)
	}
	return &g, nil
}

func (t *sqliteTx) CreateGene(ctx context.Context, gene *domain.Gene) error {
	if gene.CreatedAt.IsZero() {
		gene.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO genes (id, hgnc_id, symbol, created_at) VALUES (?, ?, ?, ?)`,
		gene.ID, gene.HGNCID, gene.Symbol, gene.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating gene: %w", err)
	}
	return nil
}

// Panel genes

const panelGeneColumns = `id, panel_id, gene_id, confidence, mode_of_inheritance, mode_of_pathogenicity, penetrance, justification, active, pending, created_at`

func scanPanelGeneRow(s interface{ Scan(...interface{}) error }) (*domain.PanelGene, error) {
	var pg domain.PanelGene
	err := s.Scan(&pg.ID, &pg.PanelID, &pg.GeneID, &pg.Confidence, &pg.ModeOfInherit,
		&pg.ModeOfPath, &pg.Penetrance, &pg.Justification, &pg.Active, &pg.Pending, &pg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &pg, nil
}

func (t *sqliteTx) GetPanelGene(ctx context.Context, panelID, geneID string) (*domain.PanelGene, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+panelGeneColumns+` FROM panel_genes WHERE panel_id = ? AND gene_id = ?`, panelID, geneID)
	pg, err := scanPanelGeneRow(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning panel gene: %w", err)
	}
	return pg, nil
}

func (t *sqliteTx) CreatePanelGene(ctx context.Context, pg *domain.PanelGene) error {
	if pg.CreatedAt.IsZero() {
		pg.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO panel_genes (id, panel_id, gene_id, confidence, mode_of_inheritance,
			mode_of_pathogenicity, penetrance, justification, active, pending, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pg.ID, pg.PanelID, pg.GeneID, pg.Confidence, pg.ModeOfInherit,
		pg.ModeOfPath, pg.Penetrance, pg.Justification, pg.Active, pg.Pending, pg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating panel gene: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdatePanelGene(ctx context.Context, pg *domain.PanelGene) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE panel_genes SET confidence = ?, mode_of_inheritance = ?, mode_of_pathogenicity = ?,
			penetrance = ?, justification = ?, active = ?, pending = ?
		WHERE id = ?`,
		pg.Confidence, pg.ModeOfInherit, pg.ModeOfPath, pg.Penetrance,
		pg.Justification, pg.Active, pg.Pending, pg.ID,
	)
	if err != nil {
		return fmt.Errorf("updating panel gene: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *sqliteTx) ListPanelGenes(ctx context.Context, panelID string) ([]*domain.PanelGene, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+panelGeneColumns+` FROM panel_genes WHERE panel_id = ?`, panelID)
	if err != nil {
		return nil, fmt.Errorf("listing panel genes: %w", err)
	}
	defer rows.Close()

	var out []*domain.PanelGene
	for rows.Next() {
		pg, err := scanPanelGeneRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning panel gene: %w", err)
		}
		out = append(out, pg)
	}
	return out, rows.Err()
}

func (t *sqliteTx) GeneHasPanelMembership(ctx context.Context, hgncID string) (bool, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM panel_genes pg
		JOIN genes g ON g.id = pg.gene_id
		WHERE g.hgnc_id = ?`, hgncID)
	var count int64
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("counting panel membership: %w", err)
	}
	return count > 0, nil
}

// Links

const linkColumns = `id, indication_id, panel_id, current, pending, config_source, created_at`

func scanLinkRow(s interface{ Scan(...interface{}) error }) (*domain.Link, error) {
	var l domain.Link
	err := s.Scan(&l.ID, &l.IndicationID, &l.PanelID, &l.Current, &l.Pending, &l.ConfigSource, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (t *sqliteTx) getLink(ctx context.Context, query string, args ...interface{}) (*domain.Link, error) {
	row := t.tx.QueryRowContext(ctx, query, args...)
	l, err := scanLinkRow(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning link: %w", err)
	}
	return l, nil
}

func (t *sqliteTx) GetLink(ctx context.Context, indicationID, panelID string) (*domain.Link, error) {
	return t.getLink(ctx,
		`SELECT `+linkColumns+` FROM links WHERE indication_id = ? AND panel_id = ?`, indicationID, panelID)
}

func (t *sqliteTx) GetLinkByID(ctx context.Context, id string) (*domain.Link, error) {
	return t.getLink(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
}

func (t *sqliteTx) CreateLink(ctx context.Context, link *domain.Link) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO links (id, indication_id, panel_id, current, pending, config_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.IndicationID, link.PanelID, link.Current, link.Pending, link.ConfigSource, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating link: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdateLinkState(ctx context.Context, id string, current, pending bool) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE links SET current = ?, pending = ? WHERE id = ?`, current, pending, id)
	if err != nil {
		return fmt.Errorf("updating link state: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *sqliteTx) listLinks(ctx context.Context, query string, args ...interface{}) ([]*domain.Link, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	defer rows.Close()

	var out []*domain.Link
	for rows.Next() {
		l, err := scanLinkRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *sqliteTx) ListCurrentLinksByIndication(ctx context.Context, indicationID string) ([]*domain.Link, error) {
	return t.listLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE indication_id = ? AND current = 1`, indicationID)
}

func (t *sqliteTx) ListCurrentLinksByPanel(ctx context.Context, panelID string) ([]*domain.Link, error) {
	return t.listLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE panel_id = ? AND current = 1`, panelID)
}

func (t *sqliteTx) ListPendingLinks(ctx context.Context) ([]*domain.Link, error) {
	return t.listLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE pending = 1 ORDER BY created_at`)
}

func (t *sqliteTx) ListCurrentApprovedLinks(ctx context.Context) ([]*domain.Link, error) {
	return t.listLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE current = 1 AND pending = 0 ORDER BY created_at`)
}

// Release links

func (t *sqliteTx) GetReleaseLink(ctx context.Context, linkID, releaseID string) (*domain.ReleaseLink, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT id, link_id, release_id, created_at FROM release_links WHERE link_id = ? AND release_id = ?`,
		linkID, releaseID)
	var rl domain.ReleaseLink
	err := row.Scan(&rl.ID, &rl.LinkID, &rl.ReleaseID, &rl.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning release link: %w", err)
	}
	return &rl, nil
}

func (t *sqliteTx) CreateReleaseLink(ctx context.Context, rl *domain.ReleaseLink) error {
	if rl.CreatedAt.IsZero() {
		rl.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO release_links (id, link_id, release_id, created_at) VALUES (?, ?, ?, ?)`,
		rl.ID, rl.LinkID, rl.ReleaseID, rl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating release link: %w", err)
	}
	return nil
}

// Audit notes

func (t *sqliteTx) CreateAuditNote(ctx context.Context, note *domain.AuditNote) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO audit_notes (id, entity_type, entity_id, actor, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		note.ID, note.EntityType, note.EntityID, note.Actor, note.Message, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating audit note: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListAuditNotes(ctx context.Context, entityType, entityID string) ([]*domain.AuditNote, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, actor, message, created_at
		FROM audit_notes WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing audit notes: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditNote
	for rows.Next() {
		var n domain.AuditNote
		if err := rows.Scan(&n.ID, &n.EntityType, &n.EntityID, &n.Actor, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit note: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (t *sqliteTx) CountAuditNotes(ctx context.Context) (int64, error) {
	var count int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM audit_notes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting audit notes: %w", err)
	}
	return count, nil
}

// Transcripts

func (t *sqliteTx) GetTranscript(ctx context.Context, geneID, accession, referenceGenome string) (*domain.Transcript, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, gene_id, accession, reference_genome, created_at
		FROM transcripts WHERE gene_id = ? AND accession = ? AND reference_genome = ?`,
		geneID, accession, referenceGenome)
	var tr domain.Transcript
	err := row.Scan(&tr.ID, &tr.GeneID, &tr.Accession, &tr.ReferenceGenome, &tr.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning transcript: %w", err)
	}
	return &tr, nil
}

func (t *sqliteTx) CreateTranscript(ctx context.Context, tr *domain.Transcript) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transcripts (id, gene_id, accession, reference_genome, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		tr.ID, tr.GeneID, tr.Accession, tr.ReferenceGenome, tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating transcript: %w", err)
	}
	return nil
}

func (t *sqliteTx) CreateTranscriptRelease(ctx context.Context, tr *domain.TranscriptRelease) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transcript_releases (id, source, version, reference_genome, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		tr.ID, string(tr.Source), tr.Version, tr.ReferenceGenome, tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating transcript release: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListTranscriptReleaseVersions(ctx context.Context, source domain.TranscriptSource, referenceGenome string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT version FROM transcript_releases WHERE source = ? AND reference_genome = ?`,
		string(source), referenceGenome)
	if err != nil {
		return nil, fmt.Errorf("listing transcript release versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning transcript release version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (t *sqliteTx) CreateTranscriptReleaseLink(ctx context.Context, trl *domain.TranscriptReleaseLink) error {
	if trl.CreatedAt.IsZero() {
		trl.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transcript_release_links (id, transcript_id, release_id, match_version, match_base, default_clinical, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trl.ID, trl.TranscriptID, trl.ReleaseID,
		nullableBool(trl.MatchVersion), nullableBool(trl.MatchBase), nullableBool(trl.DefaultClinical),
		trl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating transcript release link: %w", err)
	}
	return nil
}

func nullableBool(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return *b
}
