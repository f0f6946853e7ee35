package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// replace swaps the contents of table inside one transaction and records
// the sync. insert is called once per row with its position.
func (s *Store) replace(ctx context.Context, table string, n int, insert func(tx *sql.Tx, i int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	for i := 0; i < n; i++ {
		if err := insert(tx, i); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	if err := recordSync(ctx, tx, table, n); err != nil {
		return err
	}
	return tx.Commit()
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func ptrInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func ptrTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

// ReplaceConnections stores conns. Passwords are never cached.
func (s *Store) ReplaceConnections(ctx context.Context, conns []model.DatabaseConnection) error {
	return s.replace(ctx, "connections", len(conns), func(tx *sql.Tx, i int) error {
		c := conns[i]
		_, err := tx.ExecContext(ctx, `INSERT INTO connections (
			position, id, connection_name, db_type, server_address, file_path,
			port, database_name, use_windows_auth, username
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, nullInt64(c.ID), c.ConnectionName, c.DBType, c.ServerAddress, c.FilePath,
			c.Port, c.DatabaseName, c.UseWindowsAuth, c.Username)
		return err
	})
}

func (s *Store) ListConnections(ctx context.Context) ([]model.DatabaseConnection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, connection_name, db_type, server_address, file_path,
		port, database_name, use_windows_auth, username FROM connections ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	conns := []model.DatabaseConnection{}
	for rows.Next() {
		var c model.DatabaseConnection
		var id sql.NullInt64
		var dbType, server, filePath, dbName, username sql.NullString
		var port sql.NullInt64
		if err := rows.Scan(&id, &c.ConnectionName, &dbType, &server, &filePath, &port, &dbName, &c.UseWindowsAuth, &username); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		c.ID = ptrInt64(id)
		c.DBType = dbType.String
		c.ServerAddress = server.String
		c.FilePath = filePath.String
		c.Port = int(port.Int64)
		c.DatabaseName = dbName.String
		c.Username = username.String
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (s *Store) ReplaceEntities(ctx context.Context, entities []model.MonitoredEntity) error {
	return s.replace(ctx, "entities", len(entities), func(tx *sql.Tx, i int) error {
		e := entities[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entities (position, id, name, entity_type, created_at) VALUES (?, ?, ?, ?, ?)`,
			i, nullInt64(e.ID), e.Name, string(e.EntityType), nullTime(e.CreatedAt))
		return err
	})
}

func (s *Store) ListEntities(ctx context.Context) ([]model.MonitoredEntity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, entity_type, created_at FROM entities ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	entities := []model.MonitoredEntity{}
	for rows.Next() {
		var e model.MonitoredEntity
		var id, createdAt sql.NullInt64
		var entityType string
		if err := rows.Scan(&id, &e.Name, &entityType, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		e.ID = ptrInt64(id)
		e.EntityType = model.EntityType(entityType)
		e.CreatedAt = ptrTime(createdAt)
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

const insertFinding = `INSERT INTO findings (
	id, position, entity_name, source_url, title, content, risk_score, risk_level, data_coleta, categoria
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *Store) ReplaceFindings(ctx context.Context, findings []model.Finding) error {
	return s.replace(ctx, "findings", len(findings), func(tx *sql.Tx, i int) error {
		f := findings[i]
		_, err := tx.ExecContext(ctx, insertFinding,
			f.ID, i, f.EntityName, f.SourceURL, f.Title, f.Content, f.RiskScore, string(f.RiskLevel), f.DataColeta, f.Categoria)
		return err
	})
}

// UpsertFindings merges findings into the cache. New findings go to the end
// of the collection; known ids are updated in place.
func (s *Store) UpsertFindings(ctx context.Context, findings []model.Finding) (inserted, updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM findings`).Scan(&next); err != nil {
		return 0, 0, fmt.Errorf("failed to read findings position: %w", err)
	}

	for _, f := range findings {
		res, err := tx.ExecContext(ctx, `UPDATE findings SET entity_name = ?, source_url = ?, title = ?, content = ?,
			risk_score = ?, risk_level = ?, data_coleta = ?, categoria = ? WHERE id = ?`,
			f.EntityName, f.SourceURL, f.Title, f.Content, f.RiskScore, string(f.RiskLevel), f.DataColeta, f.Categoria, f.ID)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to update finding %d: %w", f.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
			continue
		}
		if _, err := tx.ExecContext(ctx, insertFinding,
			f.ID, next, f.EntityName, f.SourceURL, f.Title, f.Content, f.RiskScore, string(f.RiskLevel), f.DataColeta, f.Categoria); err != nil {
			return 0, 0, fmt.Errorf("failed to insert finding %d: %w", f.ID, err)
		}
		next++
		inserted++
	}

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM findings`).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("failed to count findings: %w", err)
	}
	if err := recordSync(ctx, tx, "findings", total); err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit findings: %w", err)
	}
	return inserted, updated, nil
}

func (s *Store) ListFindings(ctx context.Context) ([]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, entity_name, source_url, title, content, risk_score,
		risk_level, data_coleta, categoria FROM findings ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	findings := []model.Finding{}
	for rows.Next() {
		var f model.Finding
		var sourceURL, title, content, dataColeta, categoria sql.NullString
		var score sql.NullFloat64
		var level string
		if err := rows.Scan(&f.ID, &f.EntityName, &sourceURL, &title, &content, &score, &level, &dataColeta, &categoria); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.SourceURL = sourceURL.String
		f.Title = title.String
		f.Content = content.String
		f.RiskScore = score.Float64
		f.RiskLevel = model.RiskLevel(level)
		f.DataColeta = dataColeta.String
		f.Categoria = categoria.String
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func (s *Store) ReplaceJobs(ctx context.Context, jobs []model.ExecutionJob) error {
	return s.replace(ctx, "jobs", len(jobs), func(tx *sql.Tx, i int) error {
		j := jobs[i]
		var resultado sql.NullString
		if j.Resultado != nil {
			resultado = sql.NullString{String: *j.Resultado, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO jobs (
			position, id, status, tipo_gatilho, iniciado_em, finalizado_em, resultado
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, j.ID, string(j.Status), j.TipoGatilho, nullTime(j.IniciadoEm), nullTime(j.FinalizadoEm), resultado)
		return err
	})
}

func (s *Store) ListJobs(ctx context.Context) ([]model.ExecutionJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, status, tipo_gatilho, iniciado_em, finalizado_em, resultado
		FROM jobs ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []model.ExecutionJob{}
	for rows.Next() {
		var j model.ExecutionJob
		var status string
		var tipo, resultado sql.NullString
		var started, finished sql.NullInt64
		if err := rows.Scan(&j.ID, &status, &tipo, &started, &finished, &resultado); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		j.Status = model.JobStatus(status)
		j.TipoGatilho = tipo.String
		j.IniciadoEm = ptrTime(started)
		j.FinalizadoEm = ptrTime(finished)
		if resultado.Valid {
			r := resultado.String
			j.Resultado = &r
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
