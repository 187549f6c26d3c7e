package main

import (
	"testing"
	"time"

	"github.com/dvloznov/menu-analytics/internal/config"
)

func TestReportObjectName(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		prefix string
		format string
		want   string
	}{
		{"", "text", "menu_merged_table-20240305T130709Z.txt"},
		{"reports", "csv", "reports/menu_merged_table-20240305T130709Z.csv"},
		{"/reports/daily/", "JSON", "reports/daily/menu_merged_table-20240305T130709Z.json"},
		{"reports", "", "reports/menu_merged_table-20240305T130709Z.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix+"/"+tt.format, func(t *testing.T) {
			if got := reportObjectName(tt.prefix, "menu_merged_table", tt.format, now); got != tt.want {
				t.Errorf("reportObjectName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	for format, want := range map[string]string{
		"csv":  "text/csv",
		"json": "application/json",
		"text": "text/plain",
		"":     "text/plain",
	} {
		if got := contentType(format); got != want {
			t.Errorf("contentType(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	applyOverrides(cfg, "", "", "", "")
	if cfg.Store.Kind != config.StoreNone {
		t.Errorf("empty overrides changed store kind to %q", cfg.Store.Kind)
	}

	applyOverrides(cfg, config.StoreSQLite, "menus", "/tmp/menus.db", "debug")
	if cfg.Store.Kind != config.StoreSQLite || cfg.Store.Table != "menus" ||
		cfg.Store.SQLitePath != "/tmp/menus.db" || cfg.LogLevel != "debug" {
		t.Errorf("overrides not applied: %+v, log level %q", cfg.Store, cfg.LogLevel)
	}
}
