package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ProjectDocument registers one source document for a project. Rows are
// processed in (filed_at, id) order.
type ProjectDocument struct{ ent.Schema }

func (ProjectDocument) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "project_documents"},
	}
}

func (ProjectDocument) Fields() []ent.Field {
	return []ent.Field{
		// id is the implicit auto-increment key
		field.String("project_id").NotEmpty(),
		field.String("source_ref").NotEmpty().MaxLen(2048),
		field.String("title").Optional().Nillable(),
		field.String("doc_type").Optional().Nillable(),
		field.Time("filed_at").Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (ProjectDocument) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("project_id", "source_ref").Unique(),
		index.Fields("project_id", "filed_at"),
	}
}
