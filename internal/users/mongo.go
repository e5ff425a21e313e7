package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "users"

	emailIndexName     = "email_unique"
	bootstrapIndexName = "bootstrap_unique"
)

// MongoRepository は MongoDB の users コレクションを使う Repository 実装です。
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoRepository は db 上の users コレクションを使うリポジトリを作成します。
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		coll: db.Collection(CollectionName),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes は email の一意制約と、最初の管理者を一人に限定する部分インデックスを作成します。
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(emailIndexName).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "bootstrap", Value: 1}},
			Options: options.Index().
				SetName(bootstrapIndexName).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"bootstrap": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return fmt.Errorf("users: create indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: find by email: %w", err)
	}
	return &u, nil
}

func (r *MongoRepository) Insert(ctx context.Context, u *User) error {
	if u == nil {
		return errors.New("users: user is nil")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("users: invalid role %q", u.Role)
	}
	if err := r.insert(ctx, u); err != nil {
		if isDuplicateOn(err, emailIndexName) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("users: insert: %w", err)
	}
	return nil
}

// InsertFirstAdminOrUser は件数確認と挿入の間の競合を bootstrap 部分インデックスで防ぎます。
// 同時に二件の登録が空のコレクションを観測しても、admin になれるのは片方だけです。
func (r *MongoRepository) InsertFirstAdminOrUser(ctx context.Context, u *User) error {
	if u == nil {
		return errors.New("users: user is nil")
	}

	n, err := r.CountAll(ctx)
	if err != nil {
		return err
	}

	if n == 0 {
		u.Role = RoleAdmin
		u.Bootstrap = true
		err := r.insert(ctx, u)
		if err == nil {
			return nil
		}
		if isDuplicateOn(err, emailIndexName) {
			return ErrDuplicateEmail
		}
		if !isDuplicateOn(err, bootstrapIndexName) {
			return fmt.Errorf("users: insert first admin: %w", err)
		}
		// 他のリクエストが先に管理者枠を取った
	}

	u.ID = primitive.NilObjectID
	u.Role = RoleUser
	u.Bootstrap = false
	return r.Insert(ctx, u)
}

func (r *MongoRepository) UpdateRole(ctx context.Context, email string, role Role) (bool, error) {
	if !role.Valid() {
		return false, fmt.Errorf("users: invalid role %q", role)
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"role": role}},
	)
	if err != nil {
		return false, fmt.Errorf("users: update role: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoRepository) CountAll(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("users: count: %w", err)
	}
	return n, nil
}

func (r *MongoRepository) ListAll(ctx context.Context) ([]User, error) {
	cur, err := r.coll.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer cur.Close(ctx)

	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("users: decode list: %w", err)
	}
	return out, nil
}

func (r *MongoRepository) insert(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now()
	}
	res, err := r.coll.InsertOne(ctx, u)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = id
	}
	return nil
}

// isDuplicateOn は重複キーエラーが指定インデックスによるものかを判定します。
func isDuplicateOn(err error, index string) bool {
	return mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), index)
}
