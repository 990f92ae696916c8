package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tyemill/snowline-agent/internal/config"
	"github.com/tyemill/snowline-agent/internal/llm"
)

func TestRunVersionText(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), &out, &out, []string{"version"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Snowline") {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "go_version:") {
		t.Errorf("missing go_version field: %q", out.String())
	}
}

func TestRunVersionJSON(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), &out, &out, []string{"-o", "json", "version"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out.String()), &info); err != nil {
		t.Fatalf("not valid JSON: %v\n%s", err, out.String())
	}
	if info["version"] == "" {
		t.Error("missing version key")
	}
}

func TestRunNoCommandPrintsUsage(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), &out, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Usage: snowline") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunRejectsUnknowns(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), &out, &out, []string{"frobnicate"}); err == nil {
		t.Error("unknown command accepted")
	}
	if err := run(context.Background(), &out, &out, []string{"-x"}); err == nil {
		t.Error("unknown flag accepted")
	}
	if err := run(context.Background(), &out, &out, []string{"-o", "yaml", "version"}); err == nil {
		t.Error("unknown output format accepted")
	}
}

func TestRunAskRequiresQuestion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), &out, &out, []string{"ask"}); err == nil {
		t.Error("ask without a question accepted")
	}
}

func TestCreateModelClient(t *testing.T) {
	cfg := config.Default()
	client, err := createModelClient(cfg)
	if err != nil {
		t.Fatalf("default provider: %v", err)
	}
	if _, ok := client.(*llm.OllamaClient); !ok {
		t.Errorf("client = %T, want OllamaClient", client)
	}

	cfg.Provider = "openai"
	if _, err := createModelClient(cfg); err == nil {
		t.Error("openai without api key accepted")
	}
	cfg.OpenAI.APIKey = "sk-test"
	client, err = createModelClient(cfg)
	if err != nil {
		t.Fatalf("openai provider: %v", err)
	}
	if _, ok := client.(*llm.OpenAIClient); !ok {
		t.Errorf("client = %T, want OpenAIClient", client)
	}

	cfg.Provider = "bedrock"
	if _, err := createModelClient(cfg); err == nil {
		t.Error("unknown provider accepted")
	}
}

func TestBuildRegistryOrder(t *testing.T) {
	cfg := config.Default()
	cfg.WSDOT.AccessCode = "test-code"
	model, _ := createModelClient(cfg)

	registry := buildRegistry(newLogger(os.Stderr, slog.LevelError, "text"), cfg, model)

	want := []string{
		"search",
		"nwac_avalanche_forecast",
		"noaa_area_forecast_discussion",
		"powder_poobah_forecast",
		"stevens_pass_comprehensive_weather",
		"stevens_pass_snow_analysis",
		"wsdot_mountain_pass_conditions",
	}
	got := registry.Names()
	if len(got) != len(want) {
		t.Fatalf("tools = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tools[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildRegistrySkipsWSDOTWithoutAccessCode(t *testing.T) {
	cfg := config.Default()
	model, _ := createModelClient(cfg)
	registry := buildRegistry(newLogger(os.Stderr, slog.LevelError, "text"), cfg, model)
	for _, name := range registry.Names() {
		if name == "wsdot_mountain_pass_conditions" {
			t.Error("WSDOT tool registered without an access code")
		}
	}
}

func TestLoadConfigExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: openai\nlisten:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, cfgPath, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfgPath != path {
		t.Errorf("path = %q", cfgPath)
	}
	if cfg.Provider != "openai" || cfg.Listen.Port != 9090 {
		t.Errorf("cfg = %+v", cfg)
	}

	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing explicit config accepted")
	}
}
