package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "template-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	path := filepath.Join(tempDir, "template.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write template: %v", err)
	}
	return path
}

const validTemplate = `
metadata:
  name: Developer workstation
  description: Captures a developer workstation's configuration
  version: "1.2.0"
  author: Platform Team
prerequisites:
  - name: shell available
    type: script
    inline_script: echo ready
    expected_output: ready
    on_missing: fail
registry:
  - name: environment
    path: user/environment
    dynamic_state_path: registry/environment.yaml
    action: sync
files:
  - name: editor config
    path: /home/dev/.editorconfig
    dynamic_state_path: files/editorconfig
    action: backup
    encrypt: true
applications:
  - name: cli tools
    dynamic_state_path: applications/cli.yaml
    type: standard
    source: jq
`

func TestLoadValidTemplate(t *testing.T) {
	path := writeTemplate(t, validTemplate)

	desc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Developer workstation", desc.Metadata.Name)
	assert.Len(t, desc.Prerequisites, 1)
	assert.Len(t, desc.Registry, 1)
	assert.Len(t, desc.Files, 1)
	assert.Len(t, desc.Applications, 1)
	assert.Equal(t, 3, desc.ItemCount())

	// Defaults are normalized during load.
	assert.Equal(t, ActionSync, desc.Applications[0].Action)
	assert.Equal(t, MissingFail, desc.Prerequisites[0].OnMissing)
	assert.True(t, desc.Files[0].Encrypt)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/no/such/template.yaml")
	require.Error(t, err)

	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoadStructuralError(t *testing.T) {
	// metadata must be a mapping, not a list.
	path := writeTemplate(t, `
metadata:
  - name: broken
files:
  - name: f
    path: /tmp/f
    dynamic_state_path: files/f
`)

	_, err := Load(path)
	require.Error(t, err)

	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidationCollectsAllViolations(t *testing.T) {
	path := writeTemplate(t, `
metadata:
  name: ""
  description: TODO
  version: "1.0"
  author: Someone
registry:
  - name: broken
    dynamic_state_path: registry/broken.yaml
files:
  - name: ""
    path: /tmp/x
    dynamic_state_path: files/x
applications:
  - name: custom thing
    dynamic_state_path: applications/custom.yaml
    type: custom
`)

	_, err := Load(path)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	// name empty, description placeholder, registry path missing, file name
	// missing, custom discovery_command missing, custom parse_script missing.
	assert.GreaterOrEqual(t, len(valErr.Violations), 6,
		"expected all violations collected, got: %v", valErr.Violations)
}

func TestValidationRejectsEmptyTemplate(t *testing.T) {
	path := writeTemplate(t, `
metadata:
  name: Empty
  description: Declares nothing
  version: "1.0"
  author: Someone
`)

	_, err := Load(path)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Error(), "no registry, file, or application items")
}

func TestValidationRejectsCollidingStatePaths(t *testing.T) {
	path := writeTemplate(t, `
metadata:
  name: Colliding
  description: Two items share a state file
  version: "1.0"
  author: Someone
files:
  - name: first
    path: /tmp/a
    dynamic_state_path: files/same
  - name: second
    path: /tmp/b
    dynamic_state_path: files/same
`)

	_, err := Load(path)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Error(), "collides")
}

func TestValidationRejectsInvalidEnums(t *testing.T) {
	path := writeTemplate(t, `
metadata:
  name: Bad enums
  description: Invalid action and type values
  version: "1.0"
  author: Someone
prerequisites:
  - name: check
    type: telepathy
    path: /usr/bin/true
    on_missing: explode
files:
  - name: f
    path: /tmp/f
    dynamic_state_path: files/f
    action: duplicate
`)

	_, err := Load(path)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.GreaterOrEqual(t, len(valErr.Violations), 3)
}
