package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/mining-enricher/constants"
	"github.com/joseph-ayodele/mining-enricher/db/ent/schema/utils"
)

// ExtractJob audits one (project, document) pass through the pipeline.
type ExtractJob struct{ ent.Schema }

func (ExtractJob) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extract_jobs"},
	}
}

func (ExtractJob) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		// explicit FKs
		field.String("project_id").NotEmpty(),
		field.Int("document_id").Optional().Nillable(),
		field.String("source_ref").NotEmpty(),
		field.String("format").Optional().Nillable().
			Validate(utils.EnumValidator(constants.DocumentFormats...)),
		field.Time("started_at").Default(time.Now),
		field.Time("finished_at").Optional().Nillable(),
		field.String("status").NotEmpty().
			Validate(utils.EnumValidator(constants.JobStatuses...)),
		field.String("error_message").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Int("text_length").Optional().Nillable(),
		field.Int("page_count").Optional().Nillable(),
		field.Int("excerpt_length").Optional().Nillable(),
		field.Bool("fallback").Default(false),
		field.Int("attempts").Default(0),
		field.Bool("cached").Default(false),
		field.JSON("extracted_json", json.RawMessage{}).
			Optional(),
		field.String("model_name").Optional().Nillable(),
	}
}

func (ExtractJob) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("project_id", "status", "started_at"),
		index.Fields("document_id"),
	}
}
