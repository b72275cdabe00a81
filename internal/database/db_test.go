package database

import (
	"path/filepath"
	"testing"
)

// TestOpen_CreatesParentDirectory はDBファイルの親ディレクトリが
// 存在しない場合に作成されることを検証する。
func TestOpen_CreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "sermons.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

// TestOpen_ReturnsUsableConnection は開いた接続でクエリが実行できることを検証する。
func TestOpen_ReturnsUsableConnection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sermons.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_modeの確認に失敗: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}
