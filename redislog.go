package main

import (
	"context"

	"go.uber.org/zap"
)

// redisLogger routes go-redis internal messages, mostly pool and dial
// failures, through zap.
type redisLogger struct {
	log *zap.SugaredLogger
}

func (l redisLogger) Printf(_ context.Context, format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}
