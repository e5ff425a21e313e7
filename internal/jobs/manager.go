package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/logging"
)

// Enqueuer はタスクをキューに投入します。*asynq.Client が実装します。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Manager はジョブの投入とワーカーの管理を担います。
type Manager struct {
	client   Enqueuer
	server   *asynq.Server
	mux      *asynq.ServeMux
	sessions SessionRevoker
	logger   logging.Logger
}

// NewManager は Redis URL から Manager を初期化します。
func NewManager(redisURL string, sessions SessionRevoker, logger logging.Logger) (*Manager, error) {
	if redisURL == "" {
		return nil, errors.New("jobs: redis url is empty")
	}
	if sessions == nil {
		return nil, errors.New("jobs: session store is nil")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)
	return newManager(asynq.NewClient(opt), server, sessions, logger), nil
}

func newManager(client Enqueuer, server *asynq.Server, sessions SessionRevoker, logger logging.Logger) *Manager {
	mux := asynq.NewServeMux()
	manager := &Manager{
		client:   client,
		server:   server,
		mux:      mux,
		sessions: sessions,
		logger:   logger,
	}
	mux.HandleFunc(TaskTypeRevokeSessions, manager.handleRevokeTask)
	return manager
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	if m.server == nil {
		return
	}
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Error(context.Background(), "asynq server stopped with error", "error", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.server != nil {
		m.server.Shutdown()
	}
	return m.client.Close()
}

// RevokeSessions はセッション失効タスクを投入します。
func (m *Manager) RevokeSessions(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	body, err := json.Marshal(RevokePayload{Email: email})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeRevokeSessions, body, asynq.Queue(queueName))
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
	if err != nil {
		return fmt.Errorf("jobs: enqueue revoke: %w", err)
	}
	m.logger.Debug(ctx, "revoke task enqueued", "email", email, "task_id", info.ID)
	return nil
}
