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

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guestix/guestix/internal/logger"
	"github.com/guestix/guestix/internal/process"
	"go.uber.org/zap"
)

const (
	commWorker = "worker"
	commHelper = "helper"
)

// StubInterpreter runs a scripted guest in place of a real instruction interpreter.
// Init forks workers and reaps them. Each worker vforks a helper, waits for it
// and exits. Init exits on SIGTERM.
// StubInterpreter 代替真实的指令解释器运行脚本化的访客程序：init 创建 worker 并回收它们；
// 每个 worker 通过 vfork 创建 helper 并等待其结束后退出；init 收到 SIGTERM 后退出。
type StubInterpreter struct {
	manager *process.Manager
	driver  *process.Driver
	workers int
	poll    time.Duration
}

// NewStubInterpreter creates a new StubInterpreter
// NewStubInterpreter 创建新的 StubInterpreter
func NewStubInterpreter(m *process.Manager, workers int) *StubInterpreter {
	return &StubInterpreter{manager: m, workers: workers, poll: 50 * time.Millisecond}
}

// Bind attaches the driver used to start forked processes.
// Bind 绑定用于启动子进程的 Driver。
func (s *StubInterpreter) Bind(d *process.Driver) {
	s.driver = d
}

func (s *StubInterpreter) Run(ctx context.Context, p *process.Process) {
	start := time.Now()
	switch {
	case p.PID() == process.ReaperPID:
		s.runInit(ctx, p, start)
	case p.Comm() == commHelper:
		p.ReleaseVfork()
		s.exit(ctx, p, process.ExitedStatus(0), start)
	default:
		s.runWorker(ctx, p, start)
	}
}

func (s *StubInterpreter) runInit(ctx context.Context, p *process.Process, start time.Time) {
	for i := 0; i < s.workers; i++ {
		if _, err := s.fork(ctx, p, commWorker); err != nil {
			logger.Warn(ctx, "[Stub] fork failed / 创建进程失败", zap.Error(err))
			break
		}
	}

	for {
		pending := p.TakePending()
		if pending.Has(process.SIGTERM) || pending.Has(process.SIGKILL) {
			s.exit(ctx, p, process.ExitedStatus(0), start)
		}

		res, err := s.manager.Wait(ctx, p, process.WaitAny, process.WaitOptions{NoHang: true})
		if err == nil && res.PID != process.NoPID {
			continue
		}
		if err != nil && !errors.Is(err, process.ErrNoChildren) {
			logger.Error(ctx, "[Stub] wait failed / 等待失败", zap.Error(err))
		}
		time.Sleep(s.poll)
	}
}

func (s *StubInterpreter) runWorker(ctx context.Context, p *process.Process, start time.Time) {
	helper, err := s.fork(ctx, p, commHelper)
	if err != nil {
		s.exit(ctx, p, process.ExitedStatus(1), start)
	}
	helper.WaitVfork()

	res, err := s.manager.Wait(ctx, p, process.WaitPID(helper.PID()), process.WaitOptions{})
	if err != nil || res.Status.ExitCode() != 0 {
		s.exit(ctx, p, process.ExitedStatus(1), start)
	}
	s.exit(ctx, p, process.ExitedStatus(int(p.PID())), start)
}

func (s *StubInterpreter) fork(ctx context.Context, parent *process.Process, comm string) (*process.Process, error) {
	child, err := s.manager.CreateWith(ctx, parent, func(a *process.Attrs) {
		a.Comm = comm
	})
	if err != nil {
		return nil, fmt.Errorf("fork %s: %w", comm, err)
	}
	s.driver.Start(ctx, child)
	return child, nil
}

// exit never returns.
func (s *StubInterpreter) exit(ctx context.Context, p *process.Process, status process.WaitStatus, start time.Time) {
	s.manager.Exit(ctx, p, status, process.Rusage{UserTime: time.Since(start)})
	process.ExitThread()
}
