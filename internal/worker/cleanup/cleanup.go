// Package cleanup はセッションの定期クリーンアップジョブを提供する。
// アイドル状態が続いたセッションストアをメモリから破棄し、
// 永続化済みの古いブラウザセッションと期限切れのリフレッシュトークンを削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// 削除対象の種別（ログ・メトリクス用）
const (
	KindIdleStores      = "idle_stores"
	KindBrowserSessions = "browser_sessions"
	KindRefreshTokens   = "refresh_tokens"
)

// Evictor はアイドル状態のセッションストアを破棄するインターフェース。
// session.Managerが実装する。
type Evictor interface {
	EvictIdle(ttl time.Duration) int
	Len() int
}

// Recorder はクリーンアップ結果を記録するインターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordCleanup(kind string, removed int64)
	SetActiveSessions(count int)
}

// PurgeFunc はbefore以前の行を削除し、削除件数を返す。
type PurgeFunc func(ctx context.Context, before time.Time) (int64, error)

// Target は永続化された行の削除対象。
// MaxAgeがゼロの場合は実行時刻以前の行を削除する。
type Target struct {
	Kind   string
	MaxAge time.Duration
	Purge  PurgeFunc
}

// CleanupJob はセッションの定期クリーンアップジョブ。
// 冪等な削除処理のみを行うため、複数インスタンスから同時に実行してもよい。
type CleanupJob struct {
	evictor     Evictor
	idleTimeout time.Duration
	targets     []Target
	recorder    Recorder
	logger      *slog.Logger

	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// recorderはnilでもよい。
func NewCleanupJob(evictor Evictor, idleTimeout time.Duration, targets []Target, recorder Recorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		evictor:     evictor,
		idleTimeout: idleTimeout,
		targets:     targets,
		recorder:    recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// Run はクリーンアップを1回実行する。
// 一部の削除対象が失敗しても残りは実行し、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	evicted := j.evictor.EvictIdle(j.idleTimeout)
	j.record(KindIdleStores, int64(evicted))

	var firstErr error
	for _, t := range j.targets {
		before := start.Add(-t.MaxAge)
		removed, err := t.Purge(ctx, before)
		if err != nil {
			j.logger.Error("クリーンアップの実行に失敗しました",
				slog.String("kind", t.Kind),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to clean up %s: %w", t.Kind, err)
			}
			continue
		}
		j.record(t.Kind, removed)
		j.logger.Info("クリーンアップが完了しました",
			slog.String("kind", t.Kind),
			slog.Int64("deleted_count", removed),
			slog.Time("before", before),
		)
	}

	active := j.evictor.Len()
	if j.recorder != nil {
		j.recorder.SetActiveSessions(active)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int("evicted_stores", evicted),
		slog.Int("active_sessions", active),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)

	return firstErr
}

// Start はintervalごとにRunを実行する。起動直後に1回実行し、ctxがキャンセルされると戻る。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (j *CleanupJob) record(kind string, removed int64) {
	if j.recorder != nil {
		j.recorder.RecordCleanup(kind, removed)
	}
}
