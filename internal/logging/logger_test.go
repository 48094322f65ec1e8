package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledLoggingIsNoOp(t *testing.T) {
	if err := Initialize("", Options{DebugMode: false}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	l := Get(CategoryPipeline)
	// Must not panic and must not write anywhere.
	l.Info("should vanish")
	l.Error("should vanish too")

	if IsDebugMode() {
		t.Error("IsDebugMode() = true, want false")
	}
	if IsCategoryEnabled(CategoryRisk) {
		t.Error("IsCategoryEnabled(risk) = true with debug off")
	}
}

func TestInitializeCreatesLogFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	Get(CategoryIntent).Info("classified as %s", "general")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "_intent.log") {
			found = true
		}
	}
	if !found {
		t.Errorf("no intent log file created in %s", dir)
	}
}

func TestCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	err := Initialize(dir, Options{
		DebugMode:  true,
		Level:      "info",
		Categories: map[string]bool{"risk": false},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	if IsCategoryEnabled(CategoryRisk) {
		t.Error("risk category should be disabled")
	}
	if !IsCategoryEnabled(CategoryRetrieval) {
		t.Error("unlisted categories should default to enabled")
	}
	// Disabled category returns a usable no-op logger.
	Get(CategoryRisk).Info("dropped")
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	l := Get(CategorySynthesis)
	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")

	data := readCategoryFile(t, dir, "synthesis")
	if strings.Contains(data, "debug line") || strings.Contains(data, "info line") {
		t.Errorf("level=warn should suppress debug/info, got: %q", data)
	}
	if !strings.Contains(data, "warn line") {
		t.Errorf("warn line missing from log: %q", data)
	}
}

func TestSessionLoggerPrefix(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	sl := WithSession(CategoryPipeline, "sess-42")
	sl.Info("state -> %s", "CLASSIFYING")

	data := readCategoryFile(t, dir, "pipeline")
	if !strings.Contains(data, "[sess-42] state -> CLASSIFYING") {
		t.Errorf("session prefix missing: %q", data)
	}
}

func readCategoryFile(t *testing.T, dir, category string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "_"+category+".log") {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			return string(data)
		}
	}
	t.Fatalf("no %s log file in %s", category, dir)
	return ""
}
