// Package jobs は非同期ジョブ管理機能を提供します。
//
// 現在のジョブはロール変更後のセッション失効のみです。
// 対象ユーザーのセッションをすべて削除し、次回アクセス時に再ログインさせます。
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/session"
)

// SessionRevoker はユーザー単位でセッションを削除します。
type SessionRevoker interface {
	DeleteAllForEmail(ctx context.Context, email string) (int, error)
}

func (m *Manager) handleRevokeTask(ctx context.Context, task *asynq.Task) error {
	var payload RevokePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("jobs: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Email == "" {
		return fmt.Errorf("jobs: missing email in payload: %w", asynq.SkipRetry)
	}

	n, err := m.sessions.DeleteAllForEmail(ctx, payload.Email)
	if err != nil {
		return err
	}
	m.logger.Info(ctx, "sessions revoked", "email", payload.Email, "count", n)
	return nil
}

var _ SessionRevoker = (session.Store)(nil)
