package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Project maps to the projects table. Financial fields start NULL and are
// only ever filled by the pipeline, never cleared.
type Project struct{ ent.Schema }

func (Project) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "projects"},
	}
}

func (Project) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			NotEmpty().
			Immutable().
			MaxLen(128).
			StorageKey("id"),
		field.String("name").NotEmpty(),
		field.String("company").Optional().Nillable(),
		field.Float("npv").
			Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "double precision"}),
		field.Float("irr").
			Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "double precision"}),
		field.Float("capex").
			Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "double precision"}),
		field.Float("opex").
			Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "double precision"}),
		field.Float("mine_life").
			Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "double precision"}),
		field.String("location").Optional().Nillable(),
		field.String("stage").Optional().Nillable(),
		field.Strings("commodities").Optional(),
		field.String("resource").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("reserve").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("description").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Time("created_at").Default(time.Now).Immutable(),
		// set only when a pipeline write changes a field
		field.Time("updated_at").Optional().Nillable(),
	}
}

func (Project) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("company"),
		index.Fields("updated_at"),
	}
}
