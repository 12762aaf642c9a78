package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"run", "resume", "validate"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestLoadConfigDefaultsWithoutPath(t *testing.T) {
	t.Setenv("FLOWCTL_CONFIG", "")
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Fatalf("expected default store backend memory, got %q", cfg.Store.Backend)
	}
	if cfg.Observability.Logging.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Observability.Logging.Level)
	}
}
