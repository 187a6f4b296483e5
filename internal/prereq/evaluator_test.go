package prereq

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"snapstate/internal/kvstore"
	"snapstate/internal/template"
	"snapstate/pkg/cmdexec"
)

// fakeRunner returns canned results keyed by command string.
type fakeRunner struct {
	results map[string]*cmdexec.Result
}

func (f *fakeRunner) Run(ctx context.Context, command string) (*cmdexec.Result, error) {
	if result, ok := f.results[command]; ok {
		return result, nil
	}
	return &cmdexec.Result{ExitCode: 127, Stderr: "command not found"}, nil
}

func (f *fakeRunner) RunWithStdin(ctx context.Context, command, stdin string) (*cmdexec.Result, error) {
	return f.Run(ctx, command)
}

func newTestStore(t *testing.T) kvstore.Store {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "prereq-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	return kvstore.NewFileStore(filepath.Join(tempDir, "hive.yaml"))
}

func TestScriptCheckExactOutputMatch(t *testing.T) {
	runner := &fakeRunner{results: map[string]*cmdexec.Result{
		"check_tool": {Stdout: "  ready \n", ExitCode: 0},
	}}
	evaluator := NewEvaluator(runner, newTestStore(t))

	testCases := []struct {
		name     string
		expected string
		wantMet  bool
	}{
		{"trimmed exact match", "ready", true},
		{"mismatch", "READY", false},
		{"substring is not enough", "rea", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			specs := []template.PrerequisiteSpec{{
				Name:           "tool check",
				Type:           template.PrereqScript,
				InlineScript:   "check_tool",
				ExpectedOutput: tc.expected,
				OnMissing:      template.MissingFail,
			}}
			result := evaluator.Evaluate(context.Background(), specs, "Backup")
			if result.Proceed != tc.wantMet {
				t.Errorf("Expected Proceed=%v, got %v (unmet: %v)", tc.wantMet, result.Proceed, result.Unmet)
			}
		})
	}
}

func TestScriptCheckExitCodeOnly(t *testing.T) {
	runner := &fakeRunner{results: map[string]*cmdexec.Result{
		"true_cmd":  {ExitCode: 0},
		"false_cmd": {ExitCode: 1},
	}}
	evaluator := NewEvaluator(runner, newTestStore(t))

	specs := []template.PrerequisiteSpec{
		{Name: "ok", Type: template.PrereqScript, InlineScript: "true_cmd", OnMissing: template.MissingFail},
		{Name: "bad", Type: template.PrereqScript, InlineScript: "false_cmd", OnMissing: template.MissingFail},
	}
	result := evaluator.Evaluate(context.Background(), specs, "Backup")
	if result.Proceed {
		t.Error("Expected Proceed=false with a failing required script")
	}
	if len(result.Unmet) != 1 || result.Unmet[0].Name != "bad" {
		t.Errorf("Expected exactly the failing check to be unmet, got %v", result.Unmet)
	}
}

func TestTimeoutCountsAsUnmet(t *testing.T) {
	runner := &fakeRunner{results: map[string]*cmdexec.Result{
		"slow_cmd": {TimedOut: true, ExitCode: -1},
	}}
	evaluator := NewEvaluator(runner, newTestStore(t))

	specs := []template.PrerequisiteSpec{{
		Name:         "slow",
		Type:         template.PrereqScript,
		InlineScript: "slow_cmd",
		OnMissing:    template.MissingFail,
	}}
	result := evaluator.Evaluate(context.Background(), specs, "Restore")
	if result.Proceed {
		t.Error("Expected a timed-out check to block the operation")
	}
}

func TestWarnPolicyProceeds(t *testing.T) {
	runner := &fakeRunner{results: map[string]*cmdexec.Result{}}
	evaluator := NewEvaluator(runner, newTestStore(t))

	specs := []template.PrerequisiteSpec{{
		Name:         "optional tool",
		Type:         template.PrereqScript,
		InlineScript: "missing_cmd",
		OnMissing:    template.MissingWarn,
	}}
	result := evaluator.Evaluate(context.Background(), specs, "Backup")
	if !result.Proceed {
		t.Error("Expected warn-policy unmet prerequisites to proceed")
	}
	if len(result.Unmet) != 1 {
		t.Errorf("Expected the unmet check to still be reported, got %v", result.Unmet)
	}
}

func TestFileCheck(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "prereq-file-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	existing := filepath.Join(tempDir, "present.txt")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	evaluator := NewEvaluator(&fakeRunner{}, newTestStore(t))

	specs := []template.PrerequisiteSpec{
		{Name: "present", Type: template.PrereqFile, Path: existing, OnMissing: template.MissingFail},
		{Name: "absent", Type: template.PrereqFile, Path: filepath.Join(tempDir, "missing.txt"), OnMissing: template.MissingFail},
	}
	result := evaluator.Evaluate(context.Background(), specs, "Backup")
	if result.Proceed {
		t.Error("Expected the missing file to block")
	}
	if len(result.Unmet) != 1 || result.Unmet[0].Name != "absent" {
		t.Errorf("Expected only the absent file to be unmet, got %v", result.Unmet)
	}
}

func TestRegistryCheck(t *testing.T) {
	store := newTestStore(t)
	if err := store.SetValues("system/installed", map[string]string{"marker": "1"}); err != nil {
		t.Fatalf("SetValues failed: %v", err)
	}

	evaluator := NewEvaluator(&fakeRunner{}, store)

	specs := []template.PrerequisiteSpec{
		{Name: "present", Type: template.PrereqRegistry, Path: "system/installed", OnMissing: template.MissingFail},
		{Name: "absent", Type: template.PrereqRegistry, Path: "system/missing", OnMissing: template.MissingWarn},
	}
	result := evaluator.Evaluate(context.Background(), specs, "Backup")
	if !result.Proceed {
		t.Error("Expected warn-policy miss to proceed")
	}
	if len(result.Unmet) != 1 || result.Unmet[0].Name != "absent" {
		t.Errorf("Expected only the absent key to be unmet, got %v", result.Unmet)
	}
}

func TestUnknownTypeIsUnmet(t *testing.T) {
	evaluator := NewEvaluator(&fakeRunner{}, newTestStore(t))

	specs := []template.PrerequisiteSpec{{
		Name:      "weird",
		Type:      template.PrerequisiteType("telepathy"),
		OnMissing: template.MissingFail,
	}}
	result := evaluator.Evaluate(context.Background(), specs, "Backup")
	if result.Proceed {
		t.Error("Expected an unknown check type to count as unmet")
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	runner := &fakeRunner{results: map[string]*cmdexec.Result{
		"probe": {Stdout: "ready", ExitCode: 0},
	}}
	evaluator := NewEvaluator(runner, newTestStore(t))

	specs := []template.PrerequisiteSpec{{
		Name:           "probe",
		Type:           template.PrereqScript,
		InlineScript:   "probe",
		ExpectedOutput: "ready",
		OnMissing:      template.MissingFail,
	}}

	first := evaluator.Evaluate(context.Background(), specs, "Backup")
	second := evaluator.Evaluate(context.Background(), specs, "Backup")
	if first.Proceed != second.Proceed || len(first.Unmet) != len(second.Unmet) {
		t.Error("Expected repeated evaluation to yield the same decision")
	}
}
