package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/mining-enricher/internal/common"
	"github.com/joseph-ayodele/mining-enricher/internal/entity"
)

const projectsTable = "projects"

var projectColumns = []string{
	"id", "name", "company",
	"npv", "irr", "capex", "opex", "mine_life",
	"location", "stage", "commodities", "resource", "reserve", "description",
	"created_at", "updated_at",
}

// ProjectStore is the durable project record store.
type ProjectStore interface {
	// EnsureProject inserts the project or refreshes its name and company.
	EnsureProject(ctx context.Context, id, name, company string) (entity.ProjectRecord, error)
	Get(ctx context.Context, id string) (entity.ProjectRecord, error)
	List(ctx context.Context) ([]entity.ProjectRecord, error)
	// UpsertFields writes every non-absent field of fields and leaves the
	// rest untouched. It reports whether any stored value changed.
	UpsertFields(ctx context.Context, id string, fields entity.AggregatedResult) (bool, error)
}

type projectRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewProjectRepository(db *DB, logger *slog.Logger) ProjectStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &projectRepo{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (r *projectRepo) EnsureProject(ctx context.Context, id, name, company string) (entity.ProjectRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return entity.ProjectRecord{}, common.NewAppError("VALIDATION_ERROR", "project id is required", common.ErrInvalidInput)
	}
	if strings.TrimSpace(name) == "" {
		name = id
	}
	var companyArg any
	if c := strings.TrimSpace(company); c != "" {
		companyArg = c
	}
	q := r.db.builder().Insert(projectsTable).
		Columns("id", "name", "company", "created_at").
		Values(id, strings.TrimSpace(name), companyArg, r.now()).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("name")
				u.SetExcluded("company")
			}),
		)
	if _, err := r.db.exec(ctx, q); err != nil {
		r.logger.Error("repository.project.ensure_failed", "project_id", id, "error", err)
		return entity.ProjectRecord{}, common.PersistenceError("ensure project", err)
	}
	r.logger.Info("repository.project.ensure", "project_id", id, "name", name)
	return r.Get(ctx, id)
}

func (r *projectRepo) Get(ctx context.Context, id string) (entity.ProjectRecord, error) {
	q := r.db.builder().Select(projectColumns...).
		From(r.db.builder().Table(projectsTable)).
		Where(entsql.EQ("id", id))
	rows, err := r.db.query(ctx, q)
	if err != nil {
		return entity.ProjectRecord{}, common.NewAppError("DATABASE_ERROR", "get project", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return entity.ProjectRecord{}, common.NewAppError("DATABASE_ERROR", "get project", errors.Join(common.ErrDatabase, err))
		}
		return entity.ProjectRecord{}, common.NewAppError("NOT_FOUND", "project "+id, common.ErrNotFound)
	}
	p, err := scanProject(rows)
	if err != nil {
		return entity.ProjectRecord{}, common.NewAppError("DATABASE_ERROR", "scan project", errors.Join(common.ErrDatabase, err))
	}
	return p, nil
}

func (r *projectRepo) List(ctx context.Context) ([]entity.ProjectRecord, error) {
	q := r.db.builder().Select(projectColumns...).
		From(r.db.builder().Table(projectsTable)).
		OrderBy("id")
	rows, err := r.db.query(ctx, q)
	if err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "list projects", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()
	var out []entity.ProjectRecord
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, common.NewAppError("DATABASE_ERROR", "scan project", errors.Join(common.ErrDatabase, err))
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DATABASE_ERROR", "list projects", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}

// setField is one column assignment of an upsert.
type setField struct {
	column string
	value  any
}

// knownColumns maps the non-absent fields of f to column assignments.
func knownColumns(f entity.AggregatedResult) ([]setField, error) {
	var sets []setField
	addF := func(col string, v *float64) {
		if v != nil {
			sets = append(sets, setField{col, *v})
		}
	}
	addS := func(col string, v *string) {
		if v != nil {
			sets = append(sets, setField{col, *v})
		}
	}
	addF("npv", f.NPV)
	addF("irr", f.IRR)
	addF("capex", f.Capex)
	addF("opex", f.Opex)
	addF("mine_life", f.MineLife)
	addS("location", f.Location)
	addS("stage", f.Stage)
	if len(f.Commodities) > 0 {
		b, err := json.Marshal(f.Commodities)
		if err != nil {
			return nil, err
		}
		sets = append(sets, setField{"commodities", string(b)})
	}
	addS("resource", f.Resource)
	addS("reserve", f.Reserve)
	addS("description", f.Description)
	return sets, nil
}

func (r *projectRepo) UpsertFields(ctx context.Context, id string, fields entity.AggregatedResult) (bool, error) {
	log := r.logger.With("project_id", id)
	sets, err := knownColumns(fields)
	if err != nil {
		return false, common.PersistenceError("encode fields", err)
	}
	if len(sets) == 0 {
		log.Debug("repository.project.upsert_skipped", "reason", "no known fields")
		return false, nil
	}

	now := r.now()
	b := r.db.builder()
	ins := b.Insert(projectsTable).
		Columns("id", "name", "created_at").
		Values(id, id, now).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing())

	upd := b.Update(projectsTable)
	changed := make([]*entsql.Predicate, 0, len(sets))
	for _, s := range sets {
		upd.Set(s.column, s.value)
		changed = append(changed, entsql.Or(entsql.IsNull(s.column), entsql.NEQ(s.column, s.value)))
	}
	upd.Set("updated_at", now).
		Where(entsql.And(entsql.EQ("id", id), entsql.Or(changed...)))

	var affected int64
	err = r.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := execTx(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		res, err := execTx(ctx, tx, upd)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		log.Error("repository.project.upsert_failed", "error", err)
		return false, common.PersistenceError("upsert project fields", err)
	}
	log.Info("repository.project.upsert", "fields", len(sets), "changed", affected > 0)
	return affected > 0, nil
}

func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func execTx(ctx context.Context, tx *sql.Tx, q entsql.Querier) (sql.Result, error) {
	query, args := q.Query()
	return tx.ExecContext(ctx, query, args...)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (entity.ProjectRecord, error) {
	var (
		p                                     entity.ProjectRecord
		company, location, stage, commodities sql.NullString
		resource, reserve, description        sql.NullString
		npv, irr, capex, opex, mineLife       sql.NullFloat64
		updatedAt                             sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.Name, &company,
		&npv, &irr, &capex, &opex, &mineLife,
		&location, &stage, &commodities, &resource, &reserve, &description,
		&p.CreatedAt, &updatedAt,
	)
	if err != nil {
		return entity.ProjectRecord{}, err
	}
	p.Company = company.String
	p.NPV = nullFloat(npv)
	p.IRR = nullFloat(irr)
	p.Capex = nullFloat(capex)
	p.Opex = nullFloat(opex)
	p.MineLife = nullFloat(mineLife)
	p.Location = nullString(location)
	p.Stage = nullString(stage)
	p.Resource = nullString(resource)
	p.Reserve = nullString(reserve)
	p.Description = nullString(description)
	if commodities.Valid && commodities.String != "" && commodities.String != "null" {
		if err := json.Unmarshal([]byte(commodities.String), &p.Commodities); err != nil {
			return entity.ProjectRecord{}, fmt.Errorf("decode commodities: %w", err)
		}
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		p.UpdatedAt = &t
	}
	return p, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
