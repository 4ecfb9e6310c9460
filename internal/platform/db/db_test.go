package db

import (
	"path/filepath"
	"testing"
)

func TestConnectSQLiteInMemory(t *testing.T) {
	database, err := ConnectSQLite("")
	if err != nil {
		t.Fatalf("connect sqlite failed: %v", err)
	}
	defer database.Close()

	var one int
	if err := database.DB.Raw("SELECT 1").Scan(&one).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if one != 1 {
		t.Fatalf("expected 1, got %d", one)
	}
}

func TestConnectSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	database, err := ConnectSQLite(path)
	if err != nil {
		t.Fatalf("connect sqlite failed: %v", err)
	}
	if err := database.DB.Exec("CREATE TABLE probe (id INTEGER PRIMARY KEY)").Error; err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestConnectPostgresRequiresDSN(t *testing.T) {
	if _, err := ConnectPostgres(""); err == nil {
		t.Fatalf("expected empty dsn to be rejected")
	}
}

func TestCloseNilDatabase(t *testing.T) {
	var database *Database
	if err := database.Close(); err != nil {
		t.Fatalf("expected nil close to be a no-op, got %v", err)
	}
}
