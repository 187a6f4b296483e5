package processor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"snapstate/internal/kvstore"
	"snapstate/internal/template"
)

func newRegistryFixture(t *testing.T) (kvstore.Store, string) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "registry-proc-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	store := kvstore.NewFileStore(filepath.Join(tempDir, "hive.yaml"))
	return store, tempDir
}

func TestRegistryCaptureApplyRoundTrip(t *testing.T) {
	store, tempDir := newRegistryFixture(t)

	original := map[string]string{"EDITOR": "vim", "PAGER": "less"}
	if err := store.SetValues("user/environment", original); err != nil {
		t.Fatalf("SetValues failed: %v", err)
	}

	item := template.RegistryItem{
		Name:             "environment",
		Path:             "user/environment",
		DynamicStatePath: "registry/environment.yaml",
		Action:           template.ActionSync,
	}
	statePath := filepath.Join(tempDir, "state", "registry", "environment.yaml")

	captured, err := NewRegistryProcessor(item, statePath, store).Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if !captured {
		t.Fatal("Expected a record to be captured")
	}

	// Apply into a fresh store and compare.
	freshStore, _ := newRegistryFixture(t)
	if err := NewRegistryProcessor(item, statePath, freshStore).Apply(context.Background()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	restored, err := freshStore.GetValues("user/environment")
	if err != nil {
		t.Fatalf("GetValues failed: %v", err)
	}
	if diff := cmp.Diff(original, restored); diff != "" {
		t.Errorf("Restored values differ (-want +got):\n%s", diff)
	}
}

func TestRegistryCaptureSingleValue(t *testing.T) {
	store, tempDir := newRegistryFixture(t)

	if err := store.SetValues("user/environment", map[string]string{"EDITOR": "vim", "PAGER": "less"}); err != nil {
		t.Fatalf("SetValues failed: %v", err)
	}

	item := template.RegistryItem{
		Name:             "editor only",
		Path:             "user/environment",
		KeyName:          "EDITOR",
		DynamicStatePath: "registry/editor.yaml",
	}
	statePath := filepath.Join(tempDir, "state", "registry", "editor.yaml")

	captured, err := NewRegistryProcessor(item, statePath, store).Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if !captured {
		t.Fatal("Expected a record to be captured")
	}

	freshStore, _ := newRegistryFixture(t)
	if err := NewRegistryProcessor(item, statePath, freshStore).Apply(context.Background()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	restored, err := freshStore.GetValues("user/environment")
	if err != nil {
		t.Fatalf("GetValues failed: %v", err)
	}
	want := map[string]string{"EDITOR": "vim"}
	if diff := cmp.Diff(want, restored); diff != "" {
		t.Errorf("Restored values differ (-want +got):\n%s", diff)
	}
}

func TestRegistryCaptureMissingKeyIsAbsent(t *testing.T) {
	store, tempDir := newRegistryFixture(t)

	item := template.RegistryItem{
		Name:             "missing",
		Path:             "no/such/key",
		DynamicStatePath: "registry/missing.yaml",
	}
	statePath := filepath.Join(tempDir, "state", "registry", "missing.yaml")

	captured, err := NewRegistryProcessor(item, statePath, store).Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if captured {
		t.Error("Expected no record for a missing key")
	}
	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		t.Error("Expected no state file for a missing key")
	}
}

func TestRegistryApplyWithoutStateFile(t *testing.T) {
	store, tempDir := newRegistryFixture(t)

	item := template.RegistryItem{
		Name:             "environment",
		Path:             "user/environment",
		DynamicStatePath: "registry/environment.yaml",
	}
	statePath := filepath.Join(tempDir, "state", "registry", "environment.yaml")

	if err := NewRegistryProcessor(item, statePath, store).Apply(context.Background()); err == nil {
		t.Error("Expected Apply to fail without a captured state file")
	}
}
