package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/sermonsync/internal/model"
)

// SQLiteSermonRepo はSQLiteを使用した説教リポジトリ。
type SQLiteSermonRepo struct {
	db *sql.DB
}

// NewSQLiteSermonRepo はSQLiteSermonRepoを生成する。
func NewSQLiteSermonRepo(db *sql.DB) *SQLiteSermonRepo {
	return &SQLiteSermonRepo{db: db}
}

const sermonColumns = `id, guid, title, audio_url, categories, published_at,
       is_date_estimated, file_path, fetched_at, created_at, updated_at`

// scanSermon は1行分の説教レコードをスキャンする。
func scanSermon(row interface{ Scan(...any) error }) (*model.Sermon, error) {
	sermon := &model.Sermon{}
	var publishedAt sql.NullTime
	var filePath sql.NullString

	err := row.Scan(
		&sermon.ID, &sermon.GUID, &sermon.Title, &sermon.AudioURL,
		&sermon.Categories, &publishedAt, &sermon.IsDateEstimated,
		&filePath, &sermon.FetchedAt, &sermon.CreatedAt, &sermon.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		t := publishedAt.Time
		sermon.PublishedAt = &t
	}
	if filePath.Valid {
		p := filePath.String
		sermon.FilePath = &p
	}

	return sermon, nil
}

// FindByID は指定IDの説教を取得する。見つからない場合はnilを返す。
func (r *SQLiteSermonRepo) FindByID(ctx context.Context, id string) (*model.Sermon, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sermonColumns+` FROM sermons WHERE id = ?`, id)

	sermon, err := scanSermon(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("説教の取得に失敗しました: %w", err)
	}

	return sermon, nil
}

// FindByGUID はフィードエントリGUIDで説教を検索する。見つからない場合はnilを返す。
func (r *SQLiteSermonRepo) FindByGUID(ctx context.Context, guid string) (*model.Sermon, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sermonColumns+` FROM sermons WHERE guid = ?`, guid)

	sermon, err := scanSermon(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GUID による説教の検索に失敗しました: %w", err)
	}

	return sermon, nil
}

// ExistsByGUID は指定GUIDの説教が存在するかを返す。
func (r *SQLiteSermonRepo) ExistsByGUID(ctx context.Context, guid string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sermons WHERE guid = ?`, guid,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("説教の存在確認に失敗しました: %w", err)
	}
	return count > 0, nil
}

// Create は説教を新規作成する。
func (r *SQLiteSermonRepo) Create(ctx context.Context, sermon *model.Sermon) error {
	var publishedAt sql.NullTime
	if sermon.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: *sermon.PublishedAt, Valid: true}
	}
	var filePath sql.NullString
	if sermon.FilePath != nil {
		filePath = sql.NullString{String: *sermon.FilePath, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sermons (id, guid, title, audio_url, categories, published_at,
		        is_date_estimated, file_path, fetched_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sermon.ID, sermon.GUID, sermon.Title, sermon.AudioURL, sermon.Categories,
		publishedAt, sermon.IsDateEstimated, filePath,
		sermon.FetchedAt, sermon.CreatedAt, sermon.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("説教の作成に失敗しました: %w", err)
	}

	return nil
}

// UpdateMetadata は説教のメタデータのみを更新する。file_pathは変更しない。
func (r *SQLiteSermonRepo) UpdateMetadata(ctx context.Context, sermon *model.Sermon) error {
	var publishedAt sql.NullTime
	if sermon.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: *sermon.PublishedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE sermons
		 SET title = ?, audio_url = ?, categories = ?, published_at = ?,
		     is_date_estimated = ?, updated_at = ?
		 WHERE id = ?`,
		sermon.Title, sermon.AudioURL, sermon.Categories, publishedAt,
		sermon.IsDateEstimated, sermon.UpdatedAt, sermon.ID,
	)
	if err != nil {
		return fmt.Errorf("説教メタデータの更新に失敗しました: %w", err)
	}

	return nil
}

// UpdateFilePath はダウンロード完了時にfile_pathを記録する。
func (r *SQLiteSermonRepo) UpdateFilePath(ctx context.Context, id string, filePath string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sermons SET file_path = ?, updated_at = ? WHERE id = ?`,
		filePath, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("file_pathの更新に失敗しました: %w", err)
	}

	return nil
}

// ListFetchedSince はfetched_atが指定日時以降の説教をfetched_at降順で返す。
func (r *SQLiteSermonRepo) ListFetchedSince(ctx context.Context, since time.Time) ([]*model.Sermon, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sermonColumns+`
		 FROM sermons
		 WHERE fetched_at >= ?
		 ORDER BY fetched_at DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("説教一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	sermons := make([]*model.Sermon, 0)
	for rows.Next() {
		sermon, err := scanSermon(rows)
		if err != nil {
			return nil, fmt.Errorf("説教一覧のスキャンに失敗しました: %w", err)
		}
		sermons = append(sermons, sermon)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("説教一覧の走査に失敗しました: %w", err)
	}

	return sermons, nil
}
