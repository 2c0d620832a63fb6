package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	entschema "github.com/joseph-ayodele/mining-enricher/db/ent/schema"
)

// foreign keys between schema tables, child column -> parent primary key.
var foreignKeys = []struct{ table, column, ref string }{
	{"project_documents", "project_id", "projects"},
	{"extract_jobs", "project_id", "projects"},
	{"extract_jobs", "document_id", "project_documents"},
}

// Tables builds migration tables from the ent schema descriptors.
func Tables() ([]*schema.Table, error) {
	byName := map[string]*schema.Table{}
	var out []*schema.Table
	for _, s := range entschema.All() {
		t, err := tableFor(s)
		if err != nil {
			return nil, err
		}
		byName[t.Name] = t
		out = append(out, t)
	}
	for _, fk := range foreignKeys {
		t, tok := byName[fk.table]
		parent, pok := byName[fk.ref]
		if !tok || !pok {
			return nil, fmt.Errorf("foreign key %s.%s -> %s: unknown table", fk.table, fk.column, fk.ref)
		}
		c, ok := t.Column(fk.column)
		if !ok {
			return nil, fmt.Errorf("foreign key %s.%s: unknown column", fk.table, fk.column)
		}
		t.AddForeignKey(&schema.ForeignKey{
			Symbol:     fmt.Sprintf("%s_%s_fk", fk.table, fk.column),
			Columns:    []*schema.Column{c},
			RefTable:   parent,
			RefColumns: []*schema.Column{parent.PrimaryKey[0]},
			OnDelete:   schema.Cascade,
		})
	}
	return out, nil
}

func tableFor(s ent.Interface) (*schema.Table, error) {
	name := entschema.TableName(s)
	if name == "" {
		return nil, fmt.Errorf("schema %T has no table annotation", s)
	}
	t := schema.NewTable(name)

	fields := s.Fields()
	hasID := false
	for _, f := range fields {
		if f.Descriptor().Name == "id" {
			hasID = true
		}
	}
	if !hasID {
		id := &schema.Column{Name: "id", Type: field.TypeInt, Increment: true}
		t.AddPrimary(id)
	}

	for _, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, d.Name, d.Err)
		}
		col := &schema.Column{
			Name:       columnName(d),
			Type:       d.Info.Type,
			Size:       int64(d.Size),
			Unique:     d.Unique,
			Nullable:   d.Optional,
			SchemaType: d.SchemaType,
		}
		switch v := d.Default.(type) {
		case bool, int, float64, string:
			col.Default = v
		}
		if d.Name == "id" {
			t.AddPrimary(col)
			continue
		}
		t.AddColumn(col)
	}

	for _, idx := range s.Indexes() {
		d := idx.Descriptor()
		cols := make([]string, 0, len(d.Fields))
		for _, fname := range d.Fields {
			if _, ok := t.Column(fname); !ok {
				return nil, fmt.Errorf("%s: index on unknown column %q", name, fname)
			}
			cols = append(cols, fname)
		}
		idxName := d.StorageKey
		if idxName == "" {
			idxName = strings.ToLower(name + "_" + strings.Join(cols, "_"))
		}
		t.AddIndex(idxName, d.Unique, cols)
	}
	return t, nil
}

func columnName(d *field.Descriptor) string {
	if d.StorageKey != "" {
		return d.StorageKey
	}
	return d.Name
}

// Migrate creates or upgrades every table. Columns and indexes are never dropped.
func (d *DB) Migrate(ctx context.Context) error {
	tables, err := Tables()
	if err != nil {
		return err
	}
	m, err := schema.NewMigrate(d.Driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		d.logger.Error("repository.migrate.failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	d.logger.Info("repository.migrate.ok", "tables", len(tables))
	return nil
}
