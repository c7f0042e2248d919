package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/panel-curation-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL via pgx.
// Schema management is handled by the golang-migrate runner in
// internal/database; this store assumes migrations have been applied.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL curation store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		log:  logger,
	}
}

// Begin starts a new transaction.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &postgresTx{tx: tx, ctx: ctx}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// postgresTx implements Tx over a pgx.Tx.
type postgresTx struct {
	tx   pgx.Tx
	ctx  context.Context
	done bool
}

func (t *postgresTx) Commit() error {
	t.done = true
	return t.tx.Commit(t.ctx)
}

func (t *postgresTx) Rollback() error {
	if t.done {
		return nil
	}
	return t.tx.Rollback(context.Background())
}

func wrapNoRows(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Releases

func (t *postgresTx) GetRelease(ctx context.Context, source, version string) (*domain.Release, error) {
	var r domain.Release
	err := t.tx.QueryRow(ctx, `
		SELECT id, version, source, config_source, release_date, created_at
		FROM releases WHERE source = $1 AND version = $2`, source, version,
	).Scan(&r.ID, &r.Version, &r.Source, &r.ConfigSource, &r.Date, &r.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting release")
	}
	return &r, nil
}

func (t *postgresTx) CreateRelease(ctx context.Context, release *domain.Release) error {
	if release.CreatedAt.IsZero() {
		release.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO releases (id, version, source, config_source, release_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		release.ID, release.Version, release.Source, release.ConfigSource, release.Date, release.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating release: %w", err)
	}
	return nil
}

func (t *postgresTx) ListReleaseVersions(ctx context.Context, source string) ([]string, error) {
	rows, err := t.tx.Query(ctx, `SELECT version FROM releases WHERE source = $1`, source)
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

func (t *postgresTx) LatestReleaseForLink(ctx context.Context, linkID string) (*domain.Release, error) {
	var r domain.Release
	err := t.tx.QueryRow(ctx, `
		SELECT r.id, r.version, r.source, r.config_source, r.release_date, r.created_at
		FROM releases r
		JOIN release_links rl ON rl.release_id = r.id
		WHERE rl.link_id = $1
		ORDER BY rl.created_at DESC
		LIMIT 1`, linkID,
	).Scan(&r.ID, &r.Version, &r.Source, &r.ConfigSource, &r.Date, &r.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting latest release for link")
	}
	return &r, nil
}

// Clinical indications

func (t *postgresTx) GetIndication(ctx context.Context, code, name string) (*domain.ClinicalIndication, error) {
	var ci domain.ClinicalIndication
	err := t.tx.QueryRow(ctx, `
		SELECT id, code, name, test_method, pending, created_at
		FROM clinical_indications WHERE code = $1 AND name = $2`, code, name,
	).Scan(&ci.ID, &ci.Code, &ci.Name, &ci.TestMethod, &ci.Pending, &ci.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting clinical indication")
	}
	return &ci, nil
}

func (t *postgresTx) GetIndicationByID(ctx context.Context, id string) (*domain.ClinicalIndication, error) {
	var ci domain.ClinicalIndication
	err := t.tx.QueryRow(ctx, `
		SELECT id, code, name, test_method, pending, created_at
		FROM clinical_indications WHERE id = $1`, id,
	).Scan(&ci.ID, &ci.Code, &ci.Name, &ci.TestMethod, &ci.Pending, &ci.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting clinical indication by id")
	}
	return &ci, nil
}

func (t *postgresTx) CreateIndication(ctx context.Context, ci *domain.ClinicalIndication) error {
	if ci.CreatedAt.IsZero() {
		ci.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO clinical_indications (id, code, name, test_method, pending, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ci.ID, ci.Code, ci.Name, ci.TestMethod, ci.Pending, ci.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating clinical indication: %w", err)
	}
	return nil
}

func (t *postgresTx) listIndications(ctx context.Context, query string, args ...interface{}) ([]*domain.ClinicalIndication, error) {
	rows, err := t.tx.Query(ctx, query, args...)
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

func (t *postgresTx) ListIndicationsByCode(ctx context.Context, code string) ([]*domain.ClinicalIndication, error) {
	return t.listIndications(ctx, `
		SELECT id, code, name, test_method, pending, created_at
		FROM clinical_indications WHERE code = $1 ORDER BY created_at`, code)
}

func (t *postgresTx) ListIndications(ctx context.Context) ([]*domain.ClinicalIndication, error) {
	return t.listIndications(ctx, `
		SELECT id, code, name, test_method, pending, created_at
		FROM clinical_indications ORDER BY created_at`)
}

func (t *postgresTx) UpdateIndicationTestMethod(ctx context.Context, id, testMethod string, pending bool) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE clinical_indications SET test_method = $2, pending = $3 WHERE id = $1`,
		id, testMethod, pending)
	if err != nil {
		return fmt.Errorf("updating test method: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Panels

const pgPanelColumns = `id, external_id, name, version, source, super, test_directory, custom, pending, created_at`

func (t *postgresTx) getPanel(ctx context.Context, query string, args ...interface{}) (*domain.Panel, error) {
	var p domain.Panel
	err := t.tx.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.ExternalID, &p.Name, &p.Version, &p.Source,
		&p.Super, &p.TestDirectory, &p.Custom, &p.Pending, &p.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting panel")
	}
	return &p, nil
}

func (t *postgresTx) GetPanelByIdentity(ctx context.Context, externalID, name, version string) (*domain.Panel, error) {
	return t.getPanel(ctx, `
		SELECT `+pgPanelColumns+` FROM panels
		WHERE external_id = $1 AND name = $2 AND version = $3 AND custom = FALSE`,
		externalID, name, version)
}

func (t *postgresTx) GetAdHocPanelByName(ctx context.Context, name string) (*domain.Panel, error) {
	return t.getPanel(ctx,
		`SELECT `+pgPanelColumns+` FROM panels WHERE name = $1 AND custom = TRUE`, name)
}

func (t *postgresTx) GetPanelByID(ctx context.Context, id string) (*domain.Panel, error) {
	return t.getPanel(ctx, `SELECT `+pgPanelColumns+` FROM panels WHERE id = $1`, id)
}

func (t *postgresTx) CreatePanel(ctx context.Context, panel *domain.Panel) error {
	if panel.CreatedAt.IsZero() {
		panel.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO panels (id, external_id, name, version, source, super, test_directory, custom, pending, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		panel.ID, panel.ExternalID, panel.Name, panel.Version, panel.Source,
		panel.Super, panel.TestDirectory, panel.Custom, panel.Pending, panel.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating panel: %w", err)
	}
	return nil
}

func (t *postgresTx) ListPanelsByExternalID(ctx context.Context, externalID string, super bool) ([]*domain.Panel, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+pgPanelColumns+` FROM panels WHERE external_id = $1 AND super = $2`, externalID, super)
	if err != nil {
		return nil, fmt.Errorf("listing panels by external id: %w", err)
	}
	defer rows.Close()

	var out []*domain.Panel
	for rows.Next() {
		var p domain.Panel
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.Name, &p.Version, &p.Source,
			&p.Super, &p.TestDirectory, &p.Custom, &p.Pending, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning panel: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (t *postgresTx) CreateSuperPanelMembership(ctx context.Context, superPanelID, childPanelID string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO super_panel_children (super_panel_id, child_panel_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, superPanelID, childPanelID)
	if err != nil {
		return fmt.Errorf("creating super panel membership: %w", err)
	}
	return nil
}

// Genes

func (t *postgresTx) GetGeneByHGNC(ctx context.Context, hgncID string) (*domain.Gene, error) {
	var g domain.Gene
	err := t.tx.QueryRow(ctx,
		`SELECT id, hgnc_id, symbol, created_at FROM genes WHERE hgnc_id = $1`, hgncID,
	).Scan(&g.ID, &g.HGNCID, &g.Symbol, &g.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting gene")
	}
	return &g, nil
}

func (t *postgresTx) GetGeneByID(ctx context.Context, id string) (*domain.Gene, error) {
	var g domain.Gene
	err := t.tx.QueryRow(ctx,
		`SELECT id, hgnc_id, symbol, created_at FROM genes WHERE id = $1`, id,
	).Scan(&g.ID, &g.HGNCID, &g.Symbol, &g.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting gene")
	}
	return &g, nil
}

func (t *postgresTx) CreateGene(ctx context.Context, gene *domain.Gene) error {
	if gene.CreatedAt.IsZero() {
		gene.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO genes (id, hgnc_id, symbol, created_at) VALUES ($1, $2, $3, $4)`,
		gene.ID, gene.HGNCID, gene.Symbol, gene.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating gene: %w", err)
	}
	return nil
}

// Panel genes

const pgPanelGeneColumns = `id, panel_id, gene_id, confidence, mode_of_inheritance, mode_of_pathogenicity, penetrance, justification, active, pending, created_at`

func (t *postgresTx) GetPanelGene(ctx context.Context, panelID, geneID string) (*domain.PanelGene, error) {
	var pg domain.PanelGene
	err := t.tx.QueryRow(ctx,
		`SELECT `+pgPanelGeneColumns+` FROM panel_genes WHERE panel_id = $1 AND gene_id = $2`,
		panelID, geneID,
	).Scan(&pg.ID, &pg.PanelID, &pg.GeneID, &pg.Confidence, &pg.ModeOfInherit,
		&pg.ModeOfPath, &pg.Penetrance, &pg.Justification, &pg.Active, &pg.Pending, &pg.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting panel gene")
	}
	return &pg, nil
}

func (t *postgresTx) CreatePanelGene(ctx context.Context, pg *domain.PanelGene) error {
	if pg.CreatedAt.IsZero() {
		pg.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO panel_genes (id, panel_id, gene_id, confidence, mode_of_inheritance,
			mode_of_pathogenicity, penetrance, justification, active, pending, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pg.ID, pg.PanelID, pg.GeneID, pg.Confidence, pg.ModeOfInherit,
		pg.ModeOfPath, pg.Penetrance, pg.Justification, pg.Active, pg.Pending, pg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating panel gene: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdatePanelGene(ctx context.Context, pg *domain.PanelGene) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE panel_genes SET confidence = $2, mode_of_inheritance = $3, mode_of_pathogenicity = $4,
			penetrance = $5, justification = $6, active = $7, pending = $8
		WHERE id = $1`,
		pg.ID, pg.Confidence, pg.ModeOfInherit, pg.ModeOfPath, pg.Penetrance,
		pg.Justification, pg.Active, pg.Pending,
	)
	if err != nil {
		return fmt.Errorf("updating panel gene: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *postgresTx) ListPanelGenes(ctx context.Context, panelID string) ([]*domain.PanelGene, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+pgPanelGeneColumns+` FROM panel_genes WHERE panel_id = $1`, panelID)
	if err != nil {
		return nil, fmt.Errorf("listing panel genes: %w", err)
	}
	defer rows.Close()

	var out []*domain.PanelGene
	for rows.Next() {
		var pg domain.PanelGene
		if err := rows.Scan(&pg.ID, &pg.PanelID, &pg.GeneID, &pg.Confidence, &pg.ModeOfInherit,
			&pg.ModeOfPath, &pg.Penetrance, &pg.Justification, &pg.Active, &pg.Pending, &pg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning panel gene: %w", err)
		}
		out = append(out, &pg)
	}
	return out, rows.Err()
}

func (t *postgresTx) GeneHasPanelMembership(ctx context.Context, hgncID string) (bool, error) {
	var count int64
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(1) FROM panel_genes pg
		JOIN genes g ON g.id = pg.gene_id
		WHERE g.hgnc_id = $1`, hgncID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting panel membership: %w", err)
	}
	return count > 0, nil
}

// Links

const pgLinkColumns = `id, indication_id, panel_id, current, pending, config_source, created_at`

func (t *postgresTx) getLink(ctx context.Context, query string, args ...interface{}) (*domain.Link, error) {
	var l domain.Link
	err := t.tx.QueryRow(ctx, query, args...).Scan(
		&l.ID, &l.IndicationID, &l.PanelID, &l.Current, &l.Pending, &l.ConfigSource, &l.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting link")
	}
	return &l, nil
}

func (t *postgresTx) GetLink(ctx context.Context, indicationID, panelID string) (*domain.Link, error) {
	return t.getLink(ctx,
		`SELECT `+pgLinkColumns+` FROM links WHERE indication_id = $1 AND panel_id = $2`,
		indicationID, panelID)
}

func (t *postgresTx) GetLinkByID(ctx context.Context, id string) (*domain.Link, error) {
	return t.getLink(ctx, `SELECT `+pgLinkColumns+` FROM links WHERE id = $1`, id)
}

func (t *postgresTx) CreateLink(ctx context.Context, link *domain.Link) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO links (id, indication_id, panel_id, current, pending, config_source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		link.ID, link.IndicationID, link.PanelID, link.Current, link.Pending, link.ConfigSource, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating link: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateLinkState(ctx context.Context, id string, current, pending bool) error {
	result, err := t.tx.Exec(ctx,
		`UPDATE links SET current = $2, pending = $3 WHERE id = $1`, id, current, pending)
	if err != nil {
		return fmt.Errorf("updating link state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *postgresTx) listLinks(ctx context.Context, query string, args ...interface{}) ([]*domain.Link, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	defer rows.Close()

	var out []*domain.Link
	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(&l.ID, &l.IndicationID, &l.PanelID, &l.Current, &l.Pending, &l.ConfigSource, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (t *postgresTx) ListCurrentLinksByIndication(ctx context.Context, indicationID string) ([]*domain.Link, error) {
	return t.listLinks(ctx,
		`SELECT `+pgLinkColumns+` FROM links WHERE indication_id = $1 AND current = TRUE`, indicationID)
}

func (t *postgresTx) ListCurrentLinksByPanel(ctx context.Context, panelID string) ([]*domain.Link, error) {
	return t.listLinks(ctx,
		`SELECT `+pgLinkColumns+` FROM links WHERE panel_id = $1 AND current = TRUE`, panelID)
}

func (t *postgresTx) ListPendingLinks(ctx context.Context) ([]*domain.Link, error) {
	return t.listLinks(ctx,
		`SELECT `+pgLinkColumns+` FROM links WHERE pending = TRUE ORDER BY created_at`)
}

func (t *postgresTx) ListCurrentApprovedLinks(ctx context.Context) ([]*domain.Link, error) {
	return t.listLinks(ctx,
		`SELECT `+pgLinkColumns+` FROM links WHERE current = TRUE AND pending = FALSE ORDER BY created_at`)
}

// Release links

func (t *postgresTx) GetReleaseLink(ctx context.Context, linkID, releaseID string) (*domain.ReleaseLink, error) {
	var rl domain.ReleaseLink
	err := t.tx.QueryRow(ctx, `
		SELECT id, link_id, release_id, created_at
		FROM release_links WHERE link_id = $1 AND release_id = $2`, linkID, releaseID,
	).Scan(&rl.ID, &rl.LinkID, &rl.ReleaseID, &rl.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting release link")
	}
	return &rl, nil
}

func (t *postgresTx) CreateReleaseLink(ctx context.Context, rl *domain.ReleaseLink) error {
	if rl.CreatedAt.IsZero() {
		rl.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO release_links (id, link_id, release_id, created_at) VALUES ($1, $2, $3, $4)`,
		rl.ID, rl.LinkID, rl.ReleaseID, rl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating release link: %w", err)
	}
	return nil
}

// Audit notes

func (t *postgresTx) CreateAuditNote(ctx context.Context, note *domain.AuditNote) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO audit_notes (id, entity_type, entity_id, actor, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		note.ID, note.EntityType, note.EntityID, note.Actor, note.Message, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating audit note: %w", err)
	}
	return nil
}

func (t *postgresTx) ListAuditNotes(ctx context.Context, entityType, entityID string) ([]*domain.AuditNote, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, entity_type, entity_id, actor, message, created_at
		FROM audit_notes WHERE entity_type = $1 AND entity_id = $2
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

func (t *postgresTx) CountAuditNotes(ctx context.Context) (int64, error) {
	var count int64
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(1) FROM audit_notes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting audit notes: %w", err)
	}
	return count, nil
}

// Transcripts

func (t *postgresTx) GetTranscript(ctx context.Context, geneID, accession, referenceGenome string) (*domain.Transcript, error) {
	var tr domain.Transcript
	err := t.tx.QueryRow(ctx, `
		SELECT id, gene_id, accession, reference_genome, created_at
		FROM transcripts WHERE gene_id = $1 AND accession = $2 AND reference_genome = $3`,
		geneID, accession, referenceGenome,
	).Scan(&tr.ID, &tr.GeneID, &tr.Accession, &tr.ReferenceGenome, &tr.CreatedAt)
	if err != nil {
		return nil, wrapNoRows(err, "getting transcript")
	}
	return &tr, nil
}

func (t *postgresTx) CreateTranscript(ctx context.Context, tr *domain.Transcript) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transcripts (id, gene_id, accession, reference_genome, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		tr.ID, tr.GeneID, tr.Accession, tr.ReferenceGenome, tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating transcript: %w", err)
	}
	return nil
}

func (t *postgresTx) CreateTranscriptRelease(ctx context.Context, tr *domain.TranscriptRelease) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transcript_releases (id, source, version, reference_genome, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		tr.ID, string(tr.Source), tr.Version, tr.ReferenceGenome, tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating transcript release: %w", err)
	}
	return nil
}

func (t *postgresTx) ListTranscriptReleaseVersions(ctx context.Context, source domain.TranscriptSource, referenceGenome string) ([]string, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT version FROM transcript_releases WHERE source = $1 AND reference_genome = $2`,
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

func (t *postgresTx) CreateTranscriptReleaseLink(ctx context.Context, trl *domain.TranscriptReleaseLink) error {
	if trl.CreatedAt.IsZero() {
		trl.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transcript_release_links (id, transcript_id, release_id, match_version, match_base, default_clinical, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		trl.ID, trl.TranscriptID, trl.ReleaseID, trl.MatchVersion, trl.MatchBase, trl.DefaultClinical, trl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating transcript release link: %w", err)
	}
	return nil
}
