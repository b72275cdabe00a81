// Package model はドメインモデルを定義する。
package model

import "time"

// Sermon はフィードから取得した説教エピソードを表す。
// file_pathは音声ダウンロード完了まではnilのまま保持される。
type Sermon struct {
	ID              string
	GUID            string
	Title           string
	AudioURL        string
	Categories      string
	PublishedAt     *time.Time
	IsDateEstimated bool
	FilePath        *string
	FetchedAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Downloaded は音声ファイルのダウンロードが完了しているかを返す。
func (s *Sermon) Downloaded() bool {
	return s.FilePath != nil && *s.FilePath != ""
}

// ParsedEntry はフィードパーサーから取得した未保存のエピソードデータを表す。
// フェッチャーがフィードをパースした後、SyncServiceに渡される。
type ParsedEntry struct {
	GUID        string
	Title       string
	AudioURL    string
	Categories  string
	PublishedAt *time.Time
}
