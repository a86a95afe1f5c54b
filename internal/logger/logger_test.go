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

package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/guestix/guestix/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestReplaceCapturesEntries tests that the package functions route to the replaced logger
// TestReplaceCapturesEntries 测试包级函数写入被替换的日志记录器
func TestReplaceCapturesEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(zap.NewNop()) })

	ctx := context.Background()
	Debug(ctx, "debug entry", zap.Int("pid", 1))
	InfoF(ctx, "created pid %d", 2)
	WarnF(ctx, "exhausted after %d slots", 3)
	Error(ctx, "destroy twice", zap.Int("pid", 4))

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "debug entry", entries[0].Message)
	assert.Equal(t, "created pid 2", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, int64(4), entries[3].ContextMap()["pid"])
}

// TestInitWritesRotatingFile tests file output through lumberjack
// TestInitWritesRotatingFile 测试通过 lumberjack 写入日志文件
func TestInitWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guestix.log")
	require.NoError(t, Init(config.LogConfig{
		Level:      "info",
		Format:     "json",
		File:       path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	}))
	t.Cleanup(func() { Replace(zap.NewNop()) })

	Info(context.Background(), "kernel booted", zap.Int("max_pid", 64))
	Debug(context.Background(), "filtered out")
	_ = Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kernel booted")
	assert.Contains(t, string(data), `"max_pid":64`)
	assert.NotContains(t, string(data), "filtered out")
}

// TestInitRejectsBadLevel tests level validation
// TestInitRejectsBadLevel 测试日志级别校验
func TestInitRejectsBadLevel(t *testing.T) {
	assert.Error(t, Init(config.LogConfig{Level: "loud", Format: "json"}))
}
