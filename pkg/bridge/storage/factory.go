// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Backend type names accepted by New.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// New creates the storage backend selected by typ.
func New(ctx context.Context, typ string, redisCfg RedisConfig, cfg Config) (Storage, error) {
	switch typ {
	case TypeMemory, "":
		slog.Debug("using in-memory storage")
		return NewMemoryStorage(cfg), nil
	case TypeRedis:
		slog.Debug("using redis storage", "key_prefix", redisCfg.KeyPrefix)
		return NewRedisStorage(ctx, redisCfg, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}
