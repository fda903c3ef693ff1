package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFn(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	l := NewGormLogger(zap.NewNop(), gormlogger.Info)
	other, ok := l.LogMode(gormlogger.Error).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Info, l.level)
	assert.Equal(t, gormlogger.Error, other.level)
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		opts    []GormLoggerOption
		begin   time.Time
		err     error
		wantMsg string
		wantLvl zapcore.Level
	}{
		{name: "error", level: gormlogger.Warn, begin: time.Now(), err: errors.New("boom"), wantMsg: "sql error", wantLvl: zapcore.ErrorLevel},
		{name: "not found ignored", level: gormlogger.Warn, begin: time.Now(), err: gorm.ErrRecordNotFound},
		{name: "not found logged", level: gormlogger.Warn, opts: []GormLoggerOption{WithRecordNotFound(true)}, begin: time.Now(), err: gorm.ErrRecordNotFound, wantMsg: "sql error", wantLvl: zapcore.ErrorLevel},
		{name: "duplicate key", level: gormlogger.Warn, begin: time.Now(), err: gorm.ErrDuplicatedKey, wantMsg: "sql conflict", wantLvl: zapcore.WarnLevel},
		{name: "slow", level: gormlogger.Warn, opts: []GormLoggerOption{WithSlowThreshold(time.Millisecond)}, begin: time.Now().Add(-time.Second), wantMsg: "slow sql", wantLvl: zapcore.WarnLevel},
		{name: "normal query at info", level: gormlogger.Info, begin: time.Now(), wantMsg: "sql", wantLvl: zapcore.DebugLevel},
		{name: "normal query at warn", level: gormlogger.Warn, begin: time.Now()},
		{name: "silent", level: gormlogger.Silent, begin: time.Now(), err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			l := NewGormLogger(zap.New(core), tt.level, tt.opts...)

			l.Trace(context.Background(), tt.begin, sqlFn("SELECT 1"), tt.err)

			if tt.wantMsg == "" {
				assert.Zero(t, logs.Len())
				return
			}
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.wantMsg, entry.Message)
			assert.Equal(t, tt.wantLvl, entry.Level)
			assert.Equal(t, "SELECT 1", entry.ContextMap()["sql"])
		})
	}
}

func TestGormLogger_TraceCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), gormlogger.Error)
	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-1")

	l.Trace(ctx, time.Now(), sqlFn("INSERT"), errors.New("boom"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-1", logs.All()[0].ContextMap()["request_id"])
}

func TestGormLogger_Messages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), gormlogger.Warn)

	l.Info(context.Background(), "info %d", 1)
	l.Warn(context.Background(), "warn %d", 2)
	l.Error(context.Background(), "error %d", 3)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "warn 2", logs.All()[0].Message)
	assert.Equal(t, "error 3", logs.All()[1].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
