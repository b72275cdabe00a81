package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockCycleRunner はテスト用のCycleRunnerモック。
type mockCycleRunner struct {
	runs    atomic.Int32
	err     error
	block   chan struct{} // 非nilの場合、クローズされるまでRunCycleをブロックする
	started chan struct{} // RunCycle開始を通知する
}

func (m *mockCycleRunner) RunCycle(ctx context.Context) (CycleStats, error) {
	m.runs.Add(1)
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return CycleStats{}, ctx.Err()
		}
	}
	return CycleStats{}, m.err
}

func TestRunOnce_ExecutesCycle(t *testing.T) {
	runner := &mockCycleRunner{}
	s := NewScheduler(runner, newTestLogger())

	s.RunOnce(context.Background())

	if got := runner.runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestRunOnce_CycleError_IsSwallowed(t *testing.T) {
	runner := &mockCycleRunner{err: errors.New("feed unavailable")}
	s := NewScheduler(runner, newTestLogger())

	// エラーはログに記録されるのみで、パニックや伝播はしない
	s.RunOnce(context.Background())

	if got := runner.runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestRunOnce_SkipsWhileCycleInProgress(t *testing.T) {
	runner := &mockCycleRunner{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := NewScheduler(runner, newTestLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunOnce(context.Background())
	}()

	// 1回目のサイクルが開始されるのを待つ
	<-runner.started

	// 実行中に重ねて起動してもスキップされる
	s.RunOnce(context.Background())
	s.RunOnce(context.Background())

	close(runner.block)
	wg.Wait()

	if got := runner.runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1（実行中のティックはスキップ）", got)
	}
}

func TestStart_RunsImmediately_ThenOnTicks(t *testing.T) {
	runner := &mockCycleRunner{}
	s := NewScheduler(runner, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, 20*time.Millisecond)
		close(done)
	}()

	// 起動直後の1回 + 複数ティック分の実行を待つ
	deadline := time.After(2 * time.Second)
	for runner.runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("実行回数が増えません: runs = %d", runner.runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後にスケジューラが停止しません")
	}
}

func TestStart_ContextCancel_StopsLoop(t *testing.T) {
	runner := &mockCycleRunner{}
	s := NewScheduler(runner, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル済みコンテキストでスケジューラが停止しません")
	}

	// 起動直後の1回は実行される（その後のティックは発生しない）
	if got := runner.runs.Load(); got > 1 {
		t.Errorf("runs = %d, want <= 1", got)
	}
}
