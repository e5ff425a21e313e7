// Package storage はデータベース接続のライフサイクルを管理します。
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// Mongo は MongoDB クライアントと使用するデータベースをまとめたものです。
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo は接続して疎通確認まで行います。
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("storage: mongo uri is empty")
	}
	if database == "" {
		return nil, errors.New("storage: mongo database name is empty")
	}

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("storage: connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("storage: ping mongo: %w", err)
	}

	return &Mongo{client: client, db: client.Database(database)}, nil
}

// Database は使用するデータベースを返します。
func (m *Mongo) Database() *mongo.Database {
	return m.db
}

// Close は接続を切断します。
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
