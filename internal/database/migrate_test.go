package database

import (
	"context"
	"strings"
	"testing"
)

func TestMigrationsAreEmbeddedInOrder(t *testing.T) {
	files, err := Migrations()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	if files[0] != "001_init.sql" {
		t.Fatalf("expected 001_init.sql first, got %q", files[0])
	}
}

func TestInitMigrationDeclaresTenantTables(t *testing.T) {
	content, err := migrationFS.ReadFile("migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(content)
	for _, table := range []string{"transactions", "subscriptions", "checkins", "mollie_payments"} {
		if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("missing table %s", table)
		}
	}
	if !strings.Contains(sql, "UNIQUE KEY ux_mollie_payments_org_external (organization_id, mollie_payment_id)") {
		t.Fatal("mollie_payments must be unique per organization and external id")
	}
}

func TestRunMigrationsRequiresDB(t *testing.T) {
	if err := RunMigrations(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}
