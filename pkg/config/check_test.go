package config

import (
	"os"
	"strconv"
	"testing"

	"github.com/pelletier/go-toml"
)

func checkErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func writeTOML(t *testing.T, dir string, tree *toml.Tree) {
	t.Helper()
	b, err := toml.Marshal(tree)
	checkErr(t, err)
	checkErr(t, os.WriteFile(dir+"/"+ConfigFilename, b, 0644))
}

func TestConfig_MissingShellPathIsError(t *testing.T) {
	dir := t.TempDir()
	tree, err := toml.TreeFromMap(nil)
	checkErr(t, err)
	tree.Set(WorkDirKey, dir)
	writeTOML(t, dir, tree)

	if _, err := NewConfig([]string{dir}); err == nil {
		t.Fatal("expected error for missing shell path key")
	}
}

func TestConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	tree, err := toml.TreeFromMap(nil)
	checkErr(t, err)
	tree.Set(ShellPathKey, "/usr/bin/fs-updater-shell")
	writeTOML(t, dir, tree)

	cfg, err := NewConfig([]string{dir})
	checkErr(t, err)

	if cfg.ShellPath() != "/usr/bin/fs-updater-shell" {
		t.Fatalf("unexpected shell path: %q", cfg.ShellPath())
	}
	if cfg.WorkDir() != WorkDirDefault {
		t.Fatalf("expected default workdir %q, got %q", WorkDirDefault, cfg.WorkDir())
	}
	if cfg.AuditDBPath() != AuditDBPathDefault {
		t.Fatalf("expected default audit db path %q, got %q", AuditDBPathDefault, cfg.AuditDBPath())
	}
	if cfg.PollIntervalMs() != PollIntervalDefault {
		t.Fatalf("expected default poll interval %d, got %d", PollIntervalDefault, cfg.PollIntervalMs())
	}
	if cfg.StampMode() != 0o644 {
		t.Fatalf("expected default stamp mode 0644, got %o", cfg.StampMode())
	}
}

func TestConfig_PollIntervalClamping(t *testing.T) {
	tomlConfigPath := t.TempDir()

	checkPollInterval := func(value string, expected int) {
		tree, err := toml.TreeFromMap(nil)
		checkErr(t, err)
		tree.Set(ShellPathKey, "/usr/bin/fs-updater-shell")
		if len(value) > 0 {
			if n, convErr := strconv.Atoi(value); convErr == nil {
				tree.Set(PollIntervalKey, int64(n))
			} else {
				tree.Set(PollIntervalKey, value)
			}
		}
		writeTOML(t, tomlConfigPath, tree)

		cfg, err := NewConfig([]string{tomlConfigPath})
		checkErr(t, err)
		if cfg.PollIntervalMs() != expected {
			t.Fatalf("value %q: expected poll interval %d, got %d", value, expected, cfg.PollIntervalMs())
		}
	}

	// No value set, should get default.
	checkPollInterval("", PollIntervalDefault)
	// Valid value within range.
	checkPollInterval("250", 250)
	// Values out of the allowed range fall back to the default.
	checkPollInterval(strconv.Itoa(MinPollIntervalMs-1), PollIntervalDefault)
	checkPollInterval(strconv.Itoa(MaxPollIntervalMs+1), PollIntervalDefault)
}

func TestConfig_StampModeParsing(t *testing.T) {
	dir := t.TempDir()
	tree, err := toml.TreeFromMap(nil)
	checkErr(t, err)
	tree.Set(ShellPathKey, "/usr/bin/fs-updater-shell")
	tree.Set(StampModeKey, "0640")
	writeTOML(t, dir, tree)

	cfg, err := NewConfig([]string{dir})
	checkErr(t, err)
	if cfg.StampMode() != 0o640 {
		t.Fatalf("expected stamp mode 0640, got %o", cfg.StampMode())
	}
}

func TestConfig_MissingDirectoryIsSkipped(t *testing.T) {
	dir := t.TempDir()
	tree, err := toml.TreeFromMap(nil)
	checkErr(t, err)
	tree.Set(ShellPathKey, "/usr/bin/fs-updater-shell")
	writeTOML(t, dir, tree)

	cfg, err := NewConfig([]string{t.TempDir(), dir})
	checkErr(t, err)
	if cfg.ShellPath() != "/usr/bin/fs-updater-shell" {
		t.Fatalf("unexpected shell path: %q", cfg.ShellPath())
	}
}
