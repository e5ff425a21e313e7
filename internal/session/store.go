// Package session はサーバー側セッション（不透明トークン → ユーザー情報）を管理します。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL はセッションの既定の有効期限です。
const DefaultTTL = time.Hour

var ErrNotFound = errors.New("session not found")

// Data はログイン/登録時点のユーザー情報のスナップショットです。
// ロールは含めません。権限判定は必ずユーザーストアから再取得します。
type Data struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Store はセッションの保存先です。
type Store interface {
	// Create は新しいトークンを払い出して data を保存します。
	Create(ctx context.Context, data Data) (string, error)
	// Get は有効なセッションを返します。存在しない・期限切れなら ErrNotFound。
	Get(ctx context.Context, token string) (*Data, error)
	// Delete はセッションを削除します。存在しなくてもエラーにしません。
	Delete(ctx context.Context, token string) error
	// DeleteAllForEmail は指定ユーザーの全セッションを削除し、削除件数を返します。
	DeleteAllForEmail(ctx context.Context, email string) (int, error)
}

// NewToken は 256bit の乱数から不透明トークンを生成します。
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
