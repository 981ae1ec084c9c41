package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_DRIVER", "SQLITE_PATH", "ARCHIVE_DIR", "REPORT_DIR",
		"MENU_PATH", "REPORT_CACHE_TTL_SECONDS", "ACCESS_TOKEN_TTL_MINUTES", "TIMEZONE", "AUTH_SECRET"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, "restobill.db", cfg.SQLitePath)
	assert.Equal(t, "bills", cfg.ArchiveDir)
	assert.Equal(t, "reports", cfg.ReportDir)
	assert.Equal(t, "menu.csv", cfg.MenuPath)
	assert.Equal(t, 60, cfg.ReportCacheTTLSeconds)
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
	assert.Empty(t, cfg.AuthSecret)
	require.NoError(t, cfg.Validate())
}

func TestLoadIgnoresInvalidDurations(t *testing.T) {
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "-5")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "soon")

	cfg := Load()
	assert.Equal(t, 60, cfg.ReportCacheTTLSeconds)
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{StoreDriver: StoreMemory}, false},
		{"postgres without url", Config{StoreDriver: StorePostgres}, true},
		{"postgres with url", Config{StoreDriver: StorePostgres, DatabaseURL: "postgres://localhost/restobill"}, false},
		{"unknown driver", Config{StoreDriver: "mysql"}, true},
		{"bad timezone", Config{StoreDriver: StoreMemory, TimeZone: "Mars/Olympus"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLocation(t *testing.T) {
	loc, err := Config{TimeZone: "Asia/Kolkata"}.Location()
	require.NoError(t, err)
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 5*3600+1800, offset)
}
