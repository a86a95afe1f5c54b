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

package acct

import (
	"context"

	"github.com/google/uuid"
	"github.com/guestix/guestix/internal/logger"
	"github.com/guestix/guestix/internal/process"
	"go.uber.org/zap"
)

// Recorder writes a record for every reaped process of one kernel boot.
// Recorder 为一次内核启动中每个被回收的进程写入记账记录。
type Recorder struct {
	repo   *Repository
	bootID string
}

// NewRecorder creates a new Recorder. An empty bootID gets a fresh UUID.
// NewRecorder 创建新的 Recorder；bootID 为空时生成新的 UUID。
func NewRecorder(repo *Repository, bootID string) *Recorder {
	if bootID == "" {
		bootID = uuid.NewString()
	}
	return &Recorder{repo: repo, bootID: bootID}
}

func (r *Recorder) BootID() string {
	return r.bootID
}

// Handle is a process.EventHandler. Failures are logged, never propagated.
// Handle 实现 process.EventHandler；失败只记录日志，不会向上传播。
func (r *Recorder) Handle(ctx context.Context, ev process.Event, info *process.Info) {
	if ev != process.EventReaped || info == nil {
		return
	}
	if err := r.repo.Create(ctx, FromInfo(r.bootID, info)); err != nil {
		logger.Error(ctx, "[Acct] failed to write record / 写入记账记录失败",
			zap.Int32("pid", int32(info.PID)), zap.Error(err))
	}
}
