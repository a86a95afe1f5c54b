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

package process

import (
	"context"
	"errors"

	"github.com/guestix/guestix/internal/logger"
	"go.uber.org/zap"
)

// Common errors for the process core
// 进程核心的常见错误
var (
	// ErrNoFreePID indicates every slot of the PID table is in use
	// ErrNoFreePID 表示 PID 表的所有槽位均已被占用
	ErrNoFreePID = errors.New("process: no free pid")

	// ErrNoChildren indicates no child matches a wait target
	// ErrNoChildren 表示没有子进程匹配等待目标
	ErrNoChildren = errors.New("process: no child processes")

	// ErrNoSuchProcess indicates the target pid or group holds no live process
	// ErrNoSuchProcess 表示目标 pid 或进程组中没有存活进程
	ErrNoSuchProcess = errors.New("process: no such process")

	// ErrPermission indicates a job-control change is not allowed
	// ErrPermission 表示不允许该作业控制变更
	ErrPermission = errors.New("process: operation not permitted")

	// ErrInvalidArgument indicates an out-of-range pid or signal
	// ErrInvalidArgument 表示 pid 或信号超出范围
	ErrInvalidArgument = errors.New("process: invalid argument")
)

// FatalFunc handles a broken invariant. The default implementation terminates the host.
// FatalFunc 处理被破坏的不变量，默认实现会终止宿主进程。
type FatalFunc func(ctx context.Context, msg string, fields ...zap.Field)

func defaultFatal(ctx context.Context, msg string, fields ...zap.Field) {
	logger.Fatal(ctx, msg, fields...)
}
