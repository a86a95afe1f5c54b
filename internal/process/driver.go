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
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/guestix/guestix/internal/logger"
	"github.com/guestix/guestix/internal/otel_trace"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Interpreter runs guest code for one process. Run is expected to end only
// through ExitThread; returning is a broken invariant.
// Interpreter 为单个进程运行访客代码。Run 只应通过 ExitThread 结束，正常返回视为不变量被破坏。
type Interpreter interface {
	Run(ctx context.Context, p *Process)
}

// RunFunc replaces the interpreter loop, e.g. in tests.
// RunFunc 用于替换解释器循环，例如在测试中。
type RunFunc func(ctx context.Context, p *Process)

// Run lets a RunFunc act as an Interpreter.
func (f RunFunc) Run(ctx context.Context, p *Process) {
	f(ctx, p)
}

// Driver runs every process on its own dedicated native thread.
// Driver 让每个进程运行在独占的本地线程上。
type Driver struct {
	manager *Manager
	interp  Interpreter

	mu   sync.RWMutex
	hook RunFunc
}

// NewDriver creates a new Driver
// NewDriver 创建新的 Driver
func NewDriver(m *Manager, interp Interpreter) *Driver {
	return &Driver{manager: m, interp: interp}
}

// SetRunHook installs a RunFunc that takes precedence over the interpreter.
// SetRunHook 安装优先于解释器执行的 RunFunc。
func (d *Driver) SetRunHook(fn RunFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hook = fn
}

func (d *Driver) runner() RunFunc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.hook != nil {
		return d.hook
	}
	if d.interp == nil {
		return nil
	}
	return d.interp.Run
}

// Start launches the thread of p. Nothing joins it; its end is observed
// through Exit and Wait. Starting a process twice is a broken invariant.
// Start 启动 p 的线程。没有任何线程会 join 它，其结束通过 Exit 与 Wait 观察。
// 重复启动同一进程视为不变量被破坏。
func (d *Driver) Start(ctx context.Context, p *Process) {
	if !p.thread.started.CompareAndSwap(false, true) {
		d.manager.die(ctx, "process thread started twice / 进程线程被重复启动", zap.Int32("pid", int32(p.pid)))
		return
	}
	p.thread.startedAt.Store(time.Now().UnixNano())
	threadsStarted.Inc()

	runCtx := WithCurrent(context.WithoutCancel(ctx), p)
	go d.threadMain(runCtx, p)

	d.manager.emit(ctx, EventStarted, p)
}

// threadMain never unlocks the OS thread, so the thread exits together with
// the goroutine.
func (d *Driver) threadMain(ctx context.Context, p *Process) {
	runtime.LockOSThread()
	p.thread.tid.Store(int64(gettid()))

	ctx, span := otel_trace.Start(ctx, "process.thread")
	defer span.End()
	span.SetAttributes(attribute.Int("pid", int(p.pid)), attribute.Int("tid", p.TID()))
	logger.Debug(ctx, "process thread running / 进程线程已运行", zap.Int32("pid", int32(p.pid)), zap.Int("tid", p.TID()))

	run := d.runner()
	if run != nil {
		run(ctx, p)
	}
	d.manager.die(ctx, "interpreter returned / 解释器意外返回", zap.Int32("pid", int32(p.pid)))
}

// ExitThread ends the calling process thread. Deferred calls run first.
// It must be called from a thread started by Driver.Start.
// ExitThread 结束调用者所在的进程线程，延迟调用会先执行；只能在 Driver.Start 启动的线程中调用。
func ExitThread() {
	runtime.Goexit()
}

// SetMaxThreads applies the native thread limit. The Go runtime aborts the
// host when it cannot create a thread, so there is no recovery path.
// SetMaxThreads 设置本地线程上限。Go 运行时在无法创建线程时会终止宿主进程，因此没有恢复路径。
func SetMaxThreads(n int) int {
	if n <= 0 {
		return 0
	}
	return debug.SetMaxThreads(n)
}
