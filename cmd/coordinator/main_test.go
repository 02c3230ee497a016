package main

import "testing"

func TestApplyIntExplicitZeroPreserved(t *testing.T) {
	cfg := fileConfig{Shards: 3}
	applyInt(&cfg.Shards, 0, 4)
	if cfg.Shards != 0 {
		t.Fatalf("explicit zero replaced, got %d", cfg.Shards)
	}
}

func TestApplyIntUnsetFallsBack(t *testing.T) {
	cfg := fileConfig{}
	applyInt(&cfg.Shards, -1, 4)
	if cfg.Shards != 4 {
		t.Fatalf("expected fallback 4, got %d", cfg.Shards)
	}
}

func TestApplyIntUnsetKeepsFileValue(t *testing.T) {
	cfg := fileConfig{Shards: 8}
	applyInt(&cfg.Shards, -1, 4)
	if cfg.Shards != 8 {
		t.Fatalf("file value lost, got %d", cfg.Shards)
	}
}

func TestApplyStringFlagOverridesFile(t *testing.T) {
	cfg := fileConfig{Platform: "firefox"}
	applyString(&cfg.Platform, "chrome", "chrome")
	if cfg.Platform != "chrome" {
		t.Fatalf("flag override lost, got %q", cfg.Platform)
	}
}
