package main

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jakobytes/elias-1848/internal/config"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after input are moved first",
			args:     []string{"verses.csv", "-o", "sims.csv"},
			expected: []string{"-o", "sims.csv", "verses.csv"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-o", "sims.csv", "verses.csv"},
			expected: []string{"-o", "sims.csv", "verses.csv"},
		},
		{
			name:     "input only returns unchanged",
			args:     []string{"verses.csv"},
			expected: []string{"verses.csv"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"a.csv", "b.csv", "-o", "out.csv"},
			expected: []string{"-o", "out.csv", "a.csv", "b.csv"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultPath string
		want        string
	}{
		{"no config flag", []string{"-jobs", "5", "verses.csv"}, "/default.yaml", "/default.yaml"},
		{"-config present", []string{"-config", "/custom.yaml", "verses.csv"}, "/default.yaml", "/custom.yaml"},
		{"--config present", []string{"--config", "/other.yaml"}, "/default.yaml", "/other.yaml"},
		{"config at end", []string{"verses.csv", "-config", "/end.yaml"}, "/default.yaml", "/end.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := configPathFromArgs(tt.args, tt.defaultPath)
			if got != tt.want {
				t.Errorf("configPathFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, localConfigName)
	content := `
debug: true
vectorizer:
  dimensions: 300
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || cfg.Vectorizer.Dimensions != 300 {
		t.Errorf("unexpected config: debug=%v dim=%d", cfg.Debug, cfg.Vectorizer.Dimensions)
	}
}

func TestLoadConfig_defaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("system config present")
	}
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want built-in defaults", resolved)
	}
	if cfg.Vectorizer.Dimensions != 450 || cfg.Output.SimilaritiesPath != "-" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("similarity:\n  backend: gpu\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath || cfg.Similarity.Backend != "gpu" {
		t.Errorf("resolved = %s, backend = %s", resolved, cfg.Similarity.Backend)
	}
	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestParseRunArgs(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
similarity:
  threshold: 0.7
  sim_sym_thr: 0.2
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	args := []string{"in.csv", "-config", configPath, "-sim-raw-thr", "1", "-job-id", "1", "-jobs", "3", "-gpu", "-print-texts"}
	cfg, err := parseRunArgs("run", args, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Input.Path != "in.csv" {
		t.Errorf("input = %q", cfg.Input.Path)
	}
	if cfg.Similarity.Threshold != 0.7 || cfg.Similarity.SimSymThreshold != 0.2 {
		t.Errorf("config file values lost: %+v", cfg.Similarity)
	}
	if cfg.Similarity.SimRawThreshold != 1 {
		t.Errorf("sim_raw_thr = %v, want flag value 1", cfg.Similarity.SimRawThreshold)
	}
	if cfg.Job.ID == nil || *cfg.Job.ID != 1 || cfg.Job.Count == nil || *cfg.Job.Count != 3 {
		t.Errorf("job = %+v", cfg.Job)
	}
	if cfg.Similarity.Backend != "gpu" || !cfg.Output.PrintTexts {
		t.Errorf("backend = %s, print_texts = %v", cfg.Similarity.Backend, cfg.Output.PrintTexts)
	}
}

func TestParseRunArgs_jobFlagsOnlyWhenGiven(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := parseRunArgs("run", []string{"-jobs", "2", "in.csv"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Job.ID != nil || cfg.Job.Count == nil {
		t.Errorf("job = %+v", cfg.Job)
	}
	var ce *config.ConfigurationError
	if err := cfg.Validate(); !errors.As(err, &ce) || ce.Field != "job" {
		t.Errorf("Validate() = %v, want job ConfigurationError", err)
	}
}

func TestParseRunArgs_errors(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := parseRunArgs("run", []string{"a.csv", "b.csv"}, io.Discard); err == nil {
		t.Error("expected error for two inputs")
	}
	if _, err := parseRunArgs("run", []string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("-h: got %v", err)
	}
	if _, err := parseRunArgs("run", []string{"-dim", "many"}, io.Discard); err == nil {
		t.Error("expected error for non-numeric -dim")
	}
}

func TestSortCSV(t *testing.T) {
	in := "poem_id,pos,text\n" +
		"short,1,yksi\n" +
		"long,1,yksi\nlong,2,kaksi\nlong,3,kolme\n"
	var out bytes.Buffer
	n, err := sortCSV(strings.NewReader(in), &out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("sorted %d verses", n)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 || lines[0] != "poem_id,pos,text" || !strings.HasPrefix(lines[1], "long,") || !strings.HasPrefix(lines[4], "short,") {
		t.Errorf("sorted output:\n%s", out.String())
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), localConfigName)
	if err := initConfig(path, false); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Similarity.Threshold != 0.5 || cfg.Similarity.SimRawThreshold != 2.0 {
		t.Errorf("written defaults not loaded back: %+v", cfg.Similarity)
	}
	if err := initConfig(path, false); err == nil {
		t.Error("expected error for existing file")
	}
	if err := initConfig(path, true); err != nil {
		t.Errorf("force: %v", err)
	}
}
