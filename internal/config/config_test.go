package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.BasePath != "/v1" || cfg.CurrentEvent.Channel != "olimpia:current-event" {
		t.Fatalf("unexpected defaults %+v", cfg.Server)
	}
	if len(cfg.RBAC.Roles["admin"].Permissions) != 7 {
		t.Fatalf("admin should carry every permission: %v", cfg.RBAC.Roles["admin"].Permissions)
	}
}

func TestFromYAMLKeepsDefaultsForMissingSections(t *testing.T) {
	cfg, err := FromYAML([]byte("log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Server.Addr != "127.0.0.1:8080" || len(cfg.RBAC.Roles) != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestFromYAMLReplacesRoles(t *testing.T) {
	cfg, err := FromYAML([]byte("rbac:\n  roles:\n    admin:\n      permissions: [rule.write]\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.RBAC.Roles) != 1 {
		t.Fatalf("roles should be replaced, got %v", cfg.RBAC.Roles)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"postgres without dsn": "database:\n  driver: postgres\n",
		"unknown driver":       "database:\n  driver: mysql\n",
		"relative base path":   "server:\n  base_path: v1\n",
		"bad log level":        "log:\n  level: loud\n",
		"missing admin":        "rbac:\n  roles:\n    judge:\n      permissions: [score.submit]\n",
		"unknown permission":   "rbac:\n  roles:\n    admin:\n      permissions: [launch.rockets]\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("missing file should yield nil,nil: %v %v", cfg, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "olimpia.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil || cfg.Database.Driver != "sqlite" {
		t.Fatalf("load: %+v %v", cfg, err)
	}
	if _, err := Load(t.TempDir()); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}
