package main

import (
	"testing"

	"restobill/internal/config"
)

func TestValidateSecurityConfigRejectsShortSecret(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", StoreDriver: config.StoreSQLite})
	if err == nil {
		t.Fatalf("expected short AUTH_SECRET to be rejected")
	}
}

func TestValidateSecurityConfigRequiresMemorySeedPassword(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", StoreDriver: config.StoreMemory})
	if err == nil {
		t.Fatalf("expected memory store without seed password to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", StoreDriver: config.StoreSQLite})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
