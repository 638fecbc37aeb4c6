// Package db tests for schema migrations.
package db

import (
	"testing"
	"testing/fstest"
)

func newMigratedDB(t *testing.T) *DB {
	t.Helper()

	database, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	migrator, err := NewMigrator(database.DB)
	if err != nil {
		t.Fatalf("NewMigrator failed: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	return database
}

func TestUpCreatesPresenceTables(t *testing.T) {
	database := newMigratedDB(t)

	tables := []string{"users", "access_tokens", "profiles",
		"presence_status", "presence_stream", "presence_list"}
	for _, table := range tables {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("Table %s should exist: %v", table, err)
		}
	}
}

func TestUpIsIdempotent(t *testing.T) {
	database := newMigratedDB(t)

	migrator, err := NewMigrator(database.DB)
	if err != nil {
		t.Fatalf("NewMigrator failed: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Second Up should be a no-op: %v", err)
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1, got %d", version)
	}
}

func TestAppliedMigrationsRecorded(t *testing.T) {
	database := newMigratedDB(t)

	migrator, err := NewMigrator(database.DB)
	if err != nil {
		t.Fatalf("NewMigrator failed: %v", err)
	}

	applied, err := migrator.GetAppliedMigrations()
	if err != nil {
		t.Fatalf("GetAppliedMigrations failed: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("Expected 1 applied migration, got %d", len(applied))
	}
	if applied[0].Description != "presence_schema" {
		t.Errorf("Unexpected description: %q", applied[0].Description)
	}
	if len(applied[0].Checksum) != 64 {
		t.Errorf("Checksum should be a sha256 hex digest, got %q", applied[0].Checksum)
	}
}

func TestDown(t *testing.T) {
	database := newMigratedDB(t)

	migrator, err := NewMigrator(database.DB)
	if err != nil {
		t.Fatalf("NewMigrator failed: %v", err)
	}
	if err := migrator.Down(); err != nil {
		t.Fatalf("Down failed: %v", err)
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("Expected version 0 after rollback, got %d", version)
	}

	var name string
	err = database.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='presence_stream'",
	).Scan(&name)
	if err == nil {
		t.Error("presence_stream should be dropped after rollback")
	}

	if err := migrator.Down(); err == nil {
		t.Error("Down with nothing applied should fail")
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	database, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	defer database.Close()

	scripts := fstest.MapFS{
		"V1__broken.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE ok (id TEXT); CREATE TABLE broken (;"),
		},
	}
	migrator := NewMigratorFS(database.DB, scripts)

	if err := migrator.Up(); err == nil {
		t.Fatal("Broken migration should fail")
	}

	// The partial CREATE must have been rolled back.
	var name string
	err = database.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='ok'",
	).Scan(&name)
	if err == nil {
		t.Error("Failed migration should leave no tables behind")
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("Failed migration should not be recorded, got version %d", version)
	}
}
