package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_GatesDefaultOn(t *testing.T) {
	path := writeConfig(t, "bot:\n  persona: \"Ти — Анна.\"\n")

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Trigger.Enabled {
		t.Error("trigger.enabled must default to true")
	}
	if !cfg.Response.RespondToCommands || !cfg.Response.RespondInGroups || !cfg.Response.RespondToReplies {
		t.Errorf("response gates must default to true, got %+v", cfg.Response)
	}
}

func TestLoadConfig_ExplicitFalseWins(t *testing.T) {
	path := writeConfig(t, `bot:
  persona: "Ти — Анна."
trigger:
  enabled: false
response:
  respond_in_groups: false
`)

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Trigger.Enabled {
		t.Error("trigger.enabled: false must be honored")
	}
	if cfg.Response.RespondInGroups {
		t.Error("respond_in_groups: false must be honored")
	}
	if !cfg.Response.RespondToCommands {
		t.Error("unrelated gates keep their default")
	}
}

func TestLoadConfig_MissingPersona(t *testing.T) {
	path := writeConfig(t, "bot:\n  token: \"t\"\n")
	if _, err := LoadConfig(path, true); err == nil {
		t.Error("persona is required")
	}
}

func TestLoadConfig_PersonaFileOverrides(t *testing.T) {
	dir := t.TempDir()
	personaPath := filepath.Join(dir, "persona.txt")
	if err := os.WriteFile(personaPath, []byte("Ти — Анна, жива і тепла.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, "bot:\n  persona: \"коротка\"\n  persona_file: \""+personaPath+"\"\n")

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Bot.Persona != "Ти — Анна, жива і тепла." {
		t.Errorf("persona = %q", cfg.Bot.Persona)
	}
}
