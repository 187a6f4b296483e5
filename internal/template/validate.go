package template

import (
	"fmt"
	"strings"
)

// ValidationError aggregates every violation found in a template so that a
// single validation pass reports them all.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("template validation failed with %d violation(s): %s",
		len(e.Violations), strings.Join(e.Violations, "; "))
}

// placeholderValues are metadata values treated as "not filled in yet".
var placeholderValues = map[string]bool{
	"todo":        true,
	"tbd":         true,
	"changeme":    true,
	"placeholder": true,
}

// Validate checks the descriptor against the template contract. It collects
// all violations rather than stopping at the first and returns a
// *ValidationError when any are found.
func Validate(desc *TemplateDescriptor) error {
	var violations []string

	add := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	checkMetadataScalar(&violations, "metadata.name", desc.Metadata.Name)
	checkMetadataScalar(&violations, "metadata.description", desc.Metadata.Description)
	checkMetadataScalar(&violations, "metadata.version", desc.Metadata.Version)
	checkMetadataScalar(&violations, "metadata.author", desc.Metadata.Author)

	if desc.ItemCount() == 0 {
		add("template declares no registry, file, or application items")
	}

	for i, p := range desc.Prerequisites {
		label := prereqLabel(i, p.Name)
		if strings.TrimSpace(p.Name) == "" {
			add("%s: name is required", label)
		}
		if !p.Type.IsValid() {
			add("%s: invalid type %q", label, string(p.Type))
		}
		if p.Type == PrereqScript && p.InlineScript == "" && p.Path == "" {
			add("%s: script prerequisite needs inline_script or path", label)
		}
		if p.Type != PrereqScript && p.Type.IsValid() && p.Path == "" {
			add("%s: path is required for %s prerequisites", label, string(p.Type))
		}
		if !p.OnMissing.IsValid() {
			add("%s: invalid on_missing %q", label, string(p.OnMissing))
		}
	}

	for i, item := range desc.Registry {
		label := itemLabel("registry", i, item.Name)
		if strings.TrimSpace(item.Name) == "" {
			add("%s: name is required", label)
		}
		if strings.TrimSpace(item.Path) == "" {
			add("%s: path is required", label)
		}
		if strings.TrimSpace(item.DynamicStatePath) == "" {
			add("%s: dynamic_state_path is required", label)
		}
		if !item.Action.IsValid() {
			add("%s: invalid action %q", label, string(item.Action))
		}
	}

	for i, item := range desc.Files {
		label := itemLabel("files", i, item.Name)
		if strings.TrimSpace(item.Name) == "" {
			add("%s: name is required", label)
		}
		if strings.TrimSpace(item.Path) == "" {
			add("%s: path is required", label)
		}
		if strings.TrimSpace(item.DynamicStatePath) == "" {
			add("%s: dynamic_state_path is required", label)
		}
		if !item.Action.IsValid() {
			add("%s: invalid action %q", label, string(item.Action))
		}
	}

	for i, item := range desc.Applications {
		label := itemLabel("applications", i, item.Name)
		if strings.TrimSpace(item.Name) == "" {
			add("%s: name is required", label)
		}
		if strings.TrimSpace(item.DynamicStatePath) == "" {
			add("%s: dynamic_state_path is required", label)
		}
		if !item.Type.IsValid() {
			add("%s: invalid type %q", label, string(item.Type))
		}
		if item.Type == AppCustom {
			if item.DiscoveryCommand == "" {
				add("%s: custom applications need a discovery_command", label)
			}
			if item.ParseScript == "" {
				add("%s: custom applications need a parse_script", label)
			}
		}
		if !item.Action.IsValid() {
			add("%s: invalid action %q", label, string(item.Action))
		}
	}

	// Distinct items must never share a physical state file.
	seen := make(map[string]string)
	checkPath := func(category, name, dynamicStatePath string) {
		if dynamicStatePath == "" {
			return
		}
		if prev, ok := seen[dynamicStatePath]; ok {
			add("%s item %q: dynamic_state_path %q collides with %s", category, name, dynamicStatePath, prev)
			return
		}
		seen[dynamicStatePath] = fmt.Sprintf("%s item %q", category, name)
	}
	for _, item := range desc.Registry {
		checkPath("registry", item.Name, item.DynamicStatePath)
	}
	for _, item := range desc.Files {
		checkPath("files", item.Name, item.DynamicStatePath)
	}
	for _, item := range desc.Applications {
		checkPath("applications", item.Name, item.DynamicStatePath)
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func checkMetadataScalar(violations *[]string, field, value string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		*violations = append(*violations, fmt.Sprintf("%s is required", field))
		return
	}
	if placeholderValues[strings.ToLower(trimmed)] {
		*violations = append(*violations, fmt.Sprintf("%s contains placeholder value %q", field, value))
	}
}

func prereqLabel(index int, name string) string {
	if name != "" {
		return fmt.Sprintf("prerequisite %q", name)
	}
	return fmt.Sprintf("prerequisite #%d", index)
}

func itemLabel(category string, index int, name string) string {
	if name != "" {
		return fmt.Sprintf("%s item %q", category, name)
	}
	return fmt.Sprintf("%s item #%d", category, index)
}
