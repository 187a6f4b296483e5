package template

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// LoadError indicates the template document could not be read or parsed into
// the expected shape, e.g. a list where a mapping was expected. It is always
// fatal: nothing proceeds after a load failure.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load template %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads, parses, and validates a template document. Validation collects
// every violation before failing, so a template author sees the full list in
// one pass.
func Load(path string) (*TemplateDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var desc TemplateDescriptor
	if err := yaml.UnmarshalWithOptions(data, &desc, yaml.Strict()); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	normalize(&desc)

	if err := Validate(&desc); err != nil {
		return nil, err
	}

	return &desc, nil
}

// normalize fills in defaulted fields before validation: items without an
// action participate in both operations, prerequisites without a missing
// policy warn rather than fail.
func normalize(desc *TemplateDescriptor) {
	for i := range desc.Registry {
		if desc.Registry[i].Action == "" {
			desc.Registry[i].Action = ActionSync
		}
	}
	for i := range desc.Files {
		if desc.Files[i].Action == "" {
			desc.Files[i].Action = ActionSync
		}
	}
	for i := range desc.Applications {
		if desc.Applications[i].Action == "" {
			desc.Applications[i].Action = ActionSync
		}
	}
	for i := range desc.Prerequisites {
		if desc.Prerequisites[i].OnMissing == "" {
			desc.Prerequisites[i].OnMissing = MissingWarn
		}
	}
}
