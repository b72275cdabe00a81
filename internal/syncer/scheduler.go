package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CycleRunner は同期サイクル実行のインターフェース。
type CycleRunner interface {
	// RunCycle は1回の同期サイクルを実行する。
	RunCycle(ctx context.Context) (CycleStats, error)
}

// Scheduler は固定間隔で同期サイクルを起動する。
// サイクルが間隔より長くかかった場合、次のティックはスキップされる
// （明示的なskip-if-runningセマンティクス）。同時に2つのサイクルが
// 走ることはない。
type Scheduler struct {
	runner CycleRunner
	logger *slog.Logger

	// runMu は実行中サイクルの排他を担う。TryLockに失敗したティックはスキップされる。
	runMu sync.Mutex
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(runner CycleRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		logger: logger,
	}
}

// Start は固定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、以後はティックごとに実行する。
// コンテキストがキャンセルされるとループを抜ける。サイクルの実行中に
// キャンセルされた場合は、サイクル自身がctxを監視して中断し、
// その巻き戻しが完了してからStartが戻る。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は同期サイクルを1回実行する。
// 別のサイクルが実行中の場合は何もせずスキップし、その旨をログに残す。
// サイクルの失敗はログに記録するのみで、呼び出し元には伝播しない。
// 次のティックが自然な再試行となる。
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.runMu.TryLock() {
		s.logger.Warn("前回の同期サイクルが実行中のため、今回のティックをスキップします")
		return
	}
	defer s.runMu.Unlock()

	if _, err := s.runner.RunCycle(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
