/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger provides the process-wide structured logger.
// logger 包提供进程级的结构化日志记录器。
//
// Logs written with a context carry the active trace id (otelzap).
// 带上下文写入的日志会携带当前的 trace id（otelzap）。
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/guestix/guestix/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	base   = zap.NewNop()
	traced = otelzap.New(base)
)

// Init builds the global logger from configuration.
// Init 根据配置构建全局日志记录器。
func Init(cfg config.LogConfig) error {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(out), level)
	Replace(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
	return nil
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewJSONEncoder(encCfg)
}

// Replace swaps the global logger, used by tests to capture output.
// Replace 替换全局日志记录器，测试中用于捕获输出。
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	traced = otelzap.New(l, otelzap.WithMinLevel(zapcore.DebugLevel))
}

// L returns the raw zap logger.
// L 返回原始 zap 日志记录器。
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func ctxLogger(ctx context.Context) otelzap.LoggerWithCtx {
	mu.RLock()
	defer mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	return traced.Ctx(ctx)
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	ctxLogger(ctx).Debug(msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	ctxLogger(ctx).Info(msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	ctxLogger(ctx).Warn(msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	ctxLogger(ctx).Error(msg, fields...)
}

// Fatal logs and terminates the host process.
// Fatal 记录日志并终止宿主进程。
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	ctxLogger(ctx).Fatal(msg, fields...)
}

func DebugF(ctx context.Context, format string, args ...any) {
	ctxLogger(ctx).Debug(fmt.Sprintf(format, args...))
}

func InfoF(ctx context.Context, format string, args ...any) {
	ctxLogger(ctx).Info(fmt.Sprintf(format, args...))
}

func WarnF(ctx context.Context, format string, args ...any) {
	ctxLogger(ctx).Warn(fmt.Sprintf(format, args...))
}

func ErrorF(ctx context.Context, format string, args ...any) {
	ctxLogger(ctx).Error(fmt.Sprintf(format, args...))
}

// Sync flushes buffered entries.
// Sync 刷新缓冲的日志条目。
func Sync() error {
	return L().Sync()
}
