// Package template defines the declarative template document describing a
// named set of configuration items, and loads and validates it.
package template

// Action declares which operations a state item participates in.
type Action string

const (
	ActionBackup  Action = "backup"
	ActionRestore Action = "restore"
	ActionSync    Action = "sync"
)

// IsValid reports whether the action is a known value.
func (a Action) IsValid() bool {
	switch a {
	case ActionBackup, ActionRestore, ActionSync:
		return true
	}
	return false
}

// MissingPolicy declares how an unmet prerequisite is treated.
type MissingPolicy string

const (
	MissingWarn MissingPolicy = "warn"
	MissingFail MissingPolicy = "fail"
)

// IsValid reports whether the policy is a known value.
func (p MissingPolicy) IsValid() bool {
	return p == MissingWarn || p == MissingFail
}

// PrerequisiteType identifies the kind of pre-operation check.
type PrerequisiteType string

const (
	PrereqScript      PrerequisiteType = "script"
	PrereqRegistry    PrerequisiteType = "registry"
	PrereqFile        PrerequisiteType = "file"
	PrereqApplication PrerequisiteType = "application"
	PrereqService     PrerequisiteType = "service"
)

// IsValid reports whether the type is a known value.
func (t PrerequisiteType) IsValid() bool {
	switch t {
	case PrereqScript, PrereqRegistry, PrereqFile, PrereqApplication, PrereqService:
		return true
	}
	return false
}

// ApplicationType distinguishes package-manager-backed items from items whose
// inventory comes from an arbitrary discovery command.
type ApplicationType string

const (
	AppStandard ApplicationType = "standard"
	AppCustom   ApplicationType = "custom"
)

// IsValid reports whether the type is a known value.
func (t ApplicationType) IsValid() bool {
	return t == AppStandard || t == AppCustom
}

// Metadata holds the template's identifying scalars. All four are required
// and must not be placeholder text.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	Author      string `yaml:"author"`
}

// PrerequisiteSpec declares a single pre-operation check. It is evaluated
// once per operation and never persisted.
type PrerequisiteSpec struct {
	Name           string           `yaml:"name"`
	Type           PrerequisiteType `yaml:"type"`
	InlineScript   string           `yaml:"inline_script"`
	Path           string           `yaml:"path"`
	ExpectedOutput string           `yaml:"expected_output"`
	OnMissing      MissingPolicy    `yaml:"on_missing"`
}

// RegistryItem declares a registry key state item. When KeyName is empty the
// item covers every named value under the key path as a unit.
type RegistryItem struct {
	Name             string `yaml:"name"`
	Path             string `yaml:"path"`
	KeyName          string `yaml:"key_name"`
	DynamicStatePath string `yaml:"dynamic_state_path"`
	Action           Action `yaml:"action"`
}

// FileItem declares a file state item.
type FileItem struct {
	Name             string `yaml:"name"`
	Path             string `yaml:"path"`
	DynamicStatePath string `yaml:"dynamic_state_path"`
	Action           Action `yaml:"action"`
	Encrypt          bool   `yaml:"encrypt"`
}

// ApplicationItem declares an application inventory state item. Standard
// items query the configured package manager filtered by Source; custom items
// run DiscoveryCommand and normalize its output through ParseScript.
type ApplicationItem struct {
	Name             string          `yaml:"name"`
	DynamicStatePath string          `yaml:"dynamic_state_path"`
	Type             ApplicationType `yaml:"type"`
	Source           string          `yaml:"source"`
	Action           Action          `yaml:"action"`
	DiscoveryCommand string          `yaml:"discovery_command"`
	ParseScript      string          `yaml:"parse_script"`
	InstallCommand   string          `yaml:"install_command"`
	UninstallCommand string          `yaml:"uninstall_command"`
}

// TemplateDescriptor is the in-memory form of a template document.
type TemplateDescriptor struct {
	Metadata      Metadata           `yaml:"metadata"`
	Prerequisites []PrerequisiteSpec `yaml:"prerequisites"`
	Registry      []RegistryItem     `yaml:"registry"`
	Files         []FileItem         `yaml:"files"`
	Applications  []ApplicationItem  `yaml:"applications"`
}

// ItemCount returns the number of declared state items across all categories.
func (d *TemplateDescriptor) ItemCount() int {
	return len(d.Registry) + len(d.Files) + len(d.Applications)
}
