package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/temirov/flatten/internal/utils"
)

func TestInitializeConfigurationCreatesLocalFile(t *testing.T) {
	workingDirectory := t.TempDir()
	options := InitOptions{WorkingDirectory: workingDirectory, Target: InitTargetLocal}
	path, err := InitializeConfiguration(options)
	if err != nil {
		t.Fatalf("InitializeConfiguration error: %v", err)
	}
	expectedPath := filepath.Join(workingDirectory, utils.ConfigFileName)
	if path != expectedPath {
		t.Fatalf("expected path %s, got %s", expectedPath, path)
	}
	content, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("read config: %v", readErr)
	}
	if !strings.Contains(string(content), "output: flattened.txt") {
		t.Fatalf("unexpected configuration content: %s", string(content))
	}
}

func TestInitializeConfigurationHonorsGlobalTarget(t *testing.T) {
	homeDir := t.TempDir()
	path, err := InitializeConfiguration(InitOptions{Target: InitTargetGlobal, HomeDirectory: homeDir, Force: true})
	if err != nil {
		t.Fatalf("InitializeConfiguration error: %v", err)
	}
	expectedPath := filepath.Join(homeDir, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
	if path != expectedPath {
		t.Fatalf("expected configuration at %s, got %s", expectedPath, path)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected file to exist at %s: %v", path, statErr)
	}
}

func TestInitializeConfigurationPreventsOverwriteWithoutForce(t *testing.T) {
	workingDirectory := t.TempDir()
	path := filepath.Join(workingDirectory, utils.ConfigFileName)
	if err := os.WriteFile(path, []byte("existing"), 0o600); err != nil {
		t.Fatalf("write seed config: %v", err)
	}
	_, err := InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory, Target: InitTargetLocal, Force: false})
	if err == nil {
		t.Fatalf("expected error when configuration already exists")
	}
	content, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("read config: %v", readErr)
	}
	if string(content) != "existing" {
		t.Fatalf("configuration was overwritten: %q", string(content))
	}
}

func TestDefaultTemplateLoads(t *testing.T) {
	workingDirectory := t.TempDir()
	if _, err := InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory}); err != nil {
		t.Fatalf("InitializeConfiguration error: %v", err)
	}
	loaded, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDirectory, HomeDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadApplicationConfiguration error: %v", err)
	}
	if loaded.Output != "flattened.txt" || loaded.Format != "raw" {
		t.Fatalf("unexpected configuration: %+v", loaded)
	}
	if loaded.Paths.UseGitignore == nil || *loaded.Paths.UseGitignore {
		t.Fatalf("expected use_gitignore false, got %v", loaded.Paths.UseGitignore)
	}
	if loaded.Tokens.Model != "gpt-4o" || loaded.Watch.Debounce != "300ms" {
		t.Fatalf("unexpected nested values: %+v", loaded)
	}
}
