package database

import (
	"path/filepath"
	"testing"
)

// setupTestDBPath はテスト用の一時データベースファイルパスを返す。
func setupTestDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "sermons_test.db")
}

func TestRunMigrations_Up(t *testing.T) {
	dbPath := setupTestDBPath(t)

	// マイグレーション実行
	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	defer db.Close()

	// sermonsテーブルが作成されたことを確認
	var name string
	err = db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'sermons'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("テーブル存在確認クエリに失敗: %v", err)
	}
	if name != "sermons" {
		t.Errorf("テーブル %q が存在しません", "sermons")
	}

	// インデックスが作成されたことを確認
	var idxName string
	err = db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_sermons_fetched_at'",
	).Scan(&idxName)
	if err != nil {
		t.Fatalf("インデックス存在確認クエリに失敗: %v", err)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	dbPath := setupTestDBPath(t)

	// 1回目のマイグレーション
	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("1回目のマイグレーション実行に失敗: %v", err)
	}

	// 2回目のマイグレーション（冪等性確認）
	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("2回目のマイグレーション実行に失敗（冪等性の問題）: %v", err)
	}
}

func TestMigrations_UpAndDown(t *testing.T) {
	dbPath := setupTestDBPath(t)

	m, err := NewMigrator(dbPath)
	if err != nil {
		t.Fatalf("マイグレータの生成に失敗: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		t.Fatalf("Upに失敗: %v", err)
	}

	if err := m.Down(); err != nil {
		t.Fatalf("Downに失敗: %v", err)
	}

	// ロールバック後はsermonsテーブルが存在しない
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	defer db.Close()

	var count int
	err = db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sermons'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("テーブル存在確認クエリに失敗: %v", err)
	}
	if count != 0 {
		t.Errorf("ロールバック後もsermonsテーブルが残っています")
	}
}
