package users

import "context"

// Repository はユーザーストアの操作です。
// メールアドレスは大文字小文字を区別する文字列として扱います。
type Repository interface {
	// FindByEmail は該当ユーザーを返します。存在しなければ ErrNotFound。
	FindByEmail(ctx context.Context, email string) (*User, error)
	// Insert は Role をそのまま保存します。
	Insert(ctx context.Context, u *User) error
	// InsertFirstAdminOrUser はコレクションが空なら admin、そうでなければ user として
	// 保存し、確定したロールを u.Role に設定します。
	InsertFirstAdminOrUser(ctx context.Context, u *User) error
	// UpdateRole は一致したドキュメントのロールを更新し、変更があったかを返します。
	UpdateRole(ctx context.Context, email string, role Role) (bool, error)
	CountAll(ctx context.Context) (int64, error)
	ListAll(ctx context.Context) ([]User, error)
}
