// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/sermonsync/internal/model"
)

// SermonRepository は説教データの永続化インターフェース。
// GUIDによる同一性判定とメタデータ更新・ファイルパス更新を分離して提供する。
type SermonRepository interface {
	// FindByID は指定IDの説教を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Sermon, error)

	// FindByGUID はフィードエントリGUIDで説教を検索する。見つからない場合はnilを返す。
	FindByGUID(ctx context.Context, guid string) (*model.Sermon, error)

	// ExistsByGUID は指定GUIDの説教が存在するかを返す。
	ExistsByGUID(ctx context.Context, guid string) (bool, error)

	// Create は説教を新規作成する。GUIDの一意制約違反はエラーとなる。
	Create(ctx context.Context, sermon *model.Sermon) error

	// UpdateMetadata は説教のメタデータのみを更新する。
	// file_pathには一切触れない。ダウンロード済みファイルの情報を
	// メタデータの再フェッチで上書きしてはならないため。
	UpdateMetadata(ctx context.Context, sermon *model.Sermon) error

	// UpdateFilePath はダウンロード完了時にfile_pathを記録する。
	UpdateFilePath(ctx context.Context, id string, filePath string) error

	// ListFetchedSince はfetched_atが指定日時以降の説教を
	// fetched_at降順で返す。
	ListFetchedSince(ctx context.Context, since time.Time) ([]*model.Sermon, error)
}
