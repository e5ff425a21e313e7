package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/auth"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/config"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/jobs"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/logging"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/session"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/storage"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/users"
)

// infra は起動時に接続し、終了時に閉じる外部リソースです。
type infra struct {
	mongo    *storage.Mongo
	redis    *redis.Client
	jobs     *jobs.Manager
	Users    *users.MongoRepository
	Sessions session.Store

	CookieSecret string
}

func setupInfra(ctx context.Context, cfg *config.Config, logger logging.Logger) (*infra, error) {
	mongo, err := storage.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "mongodb ready", "database", cfg.MongoDatabase)

	in := &infra{mongo: mongo}

	repo := users.NewMongoRepository(mongo.Database())
	if err := repo.EnsureIndexes(ctx); err != nil {
		in.Close(logger)
		return nil, err
	}
	in.Users = repo

	in.CookieSecret = secretOrRandom(ctx, logger, "NODE_SESSION_SECRET", cfg.SessionSecret)

	if cfg.RedisURL == "" {
		logger.Warn(ctx, "REDIS_URL is empty, sessions are kept in process memory")
		in.Sessions = session.NewMemoryStore(cfg.SessionTTL())
	} else {
		rdb, err := storage.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			in.Close(logger)
			return nil, err
		}
		in.redis = rdb

		encSecret := secretOrRandom(ctx, logger, "MONGODB_SESSION_SECRET", cfg.SessionEncryptionSecret)
		codec, err := session.NewCodec(encSecret, cfg.SessionTTL())
		if err != nil {
			in.Close(logger)
			return nil, err
		}
		in.Sessions = session.NewRedisStore(rdb, codec, cfg.SessionTTL())
		logger.Info(ctx, "redis session store ready")
	}

	if cfg.QueueRedisURL != "" {
		manager, err := jobs.NewManager(cfg.QueueRedisURL, in.Sessions, logger)
		if err != nil {
			in.Close(logger)
			return nil, err
		}
		manager.StartWorkers()
		in.jobs = manager
		logger.Info(ctx, "job workers started")
	}

	return in, nil
}

// Revoker はロール変更時のセッション失効方法を返します。キューがなければ同期実行です。
func (in *infra) Revoker() auth.SessionRevoker {
	if in.jobs != nil {
		return in.jobs
	}
	return auth.InlineRevoker{Sessions: in.Sessions}
}

// Close は接続を逆順に閉じます。
func (in *infra) Close(logger logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if in.jobs != nil {
		if err := in.jobs.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "failed to stop job workers", "error", err)
		}
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			logger.Warn(ctx, "failed to close redis", "error", err)
		}
	}
	if in.mongo != nil {
		if err := in.mongo.Close(ctx); err != nil {
			logger.Warn(ctx, "failed to disconnect mongodb", "error", err)
		}
	}
}

// secretOrRandom は未設定の秘密鍵をランダム生成します（release モードでは Validate で弾かれる）。
// 再起動すると既存のセッションは無効になります。
func secretOrRandom(ctx context.Context, logger logging.Logger, name, value string) string {
	if value != "" {
		return value
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	logger.Warn(ctx, "secret not configured, using a random one", "name", name)
	return hex.EncodeToString(buf)
}
