package task

import (
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Client shares the redis connection with the rest of the process, so its
// lifetime is owned by the redis module. Tasks are produced here and consumed
// by the metrics refresher deployment.
var Client = fx.Module("asynq:client",
	fx.Provide(registerClient, NewEnqueuer),
)

func registerClient(rdb *redis.Client) *asynq.Client {
	client := asynq.NewClientFromRedisClient(rdb)

	if err := client.Ping(); err != nil {
		zap.L().Warn("[Asynq] Broker not reachable, tasks will fail to enqueue until it is", zap.Error(err))
	} else {
		zap.L().Info("[Asynq] Connected to Asynq")
	}

	return client
}
