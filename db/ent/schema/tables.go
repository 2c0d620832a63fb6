package schema

import (
	"fmt"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
)

// All lists every schema the repository layer migrates, parents first.
func All() []ent.Interface {
	return []ent.Interface{Project{}, ProjectDocument{}, ExtractJob{}}
}

// TableName returns the entsql table annotation of s.
func TableName(s ent.Interface) string {
	for _, a := range s.Annotations() {
		switch ann := a.(type) {
		case entsql.Annotation:
			if ann.Table != "" {
				return ann.Table
			}
		case *entsql.Annotation:
			if ann != nil && ann.Table != "" {
				return ann.Table
			}
		}
	}
	return ""
}

// ValidateString runs the validators declared on a string field of s.
func ValidateString(s ent.Interface, name, value string) error {
	for _, f := range s.Fields() {
		d := f.Descriptor()
		if d.Name != name {
			continue
		}
		for _, v := range d.Validators {
			if fn, ok := v.(func(string) error); ok {
				if err := fn(value); err != nil {
					return fmt.Errorf("%s.%s: %w", TableName(s), name, err)
				}
			}
		}
		return nil
	}
	return fmt.Errorf("%s: unknown field %q", TableName(s), name)
}
