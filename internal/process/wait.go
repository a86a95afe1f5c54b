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
	"time"

	"github.com/guestix/guestix/internal/logger"
	"github.com/guestix/guestix/internal/otel_trace"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// WaitStatus is a wait(2)-style status word.
// WaitStatus 是 wait(2) 风格的状态字。
type WaitStatus uint32

// ExitedStatus encodes a normal exit with code.
// ExitedStatus 编码以 code 正常退出的状态。
func ExitedStatus(code int) WaitStatus {
	return WaitStatus(code&0xff) << 8
}

// SignaledStatus encodes a termination by sig.
// SignaledStatus 编码被 sig 终止的状态。
func SignaledStatus(sig Signal) WaitStatus {
	return WaitStatus(sig & 0x7f)
}

func (w WaitStatus) Exited() bool {
	return w&0x7f == 0
}

func (w WaitStatus) ExitCode() int {
	if !w.Exited() {
		return -1
	}
	return int(w>>8) & 0xff
}

func (w WaitStatus) Signaled() bool {
	return w&0x7f != 0 && w&0x7f != 0x7f
}

func (w WaitStatus) Signal() Signal {
	if !w.Signaled() {
		return 0
	}
	return Signal(w & 0x7f)
}

// WaitTarget selects children the way the pid argument of waitpid(2) does:
// WaitAny (-1), a pid (>0), the caller's group (0) or the group -pgid (<-1).
// WaitTarget 按 waitpid(2) 的 pid 参数选择子进程：任意子进程(-1)、指定 pid(>0)、
// 调用者所在进程组(0) 或进程组 -pgid(<-1)。
type WaitTarget int32

const (
	WaitAny      WaitTarget = -1
	WaitOwnGroup WaitTarget = 0
)

// WaitGroup targets the process group pgid. Group 1 collides with WaitAny.
func WaitGroup(pgid ID) WaitTarget {
	return WaitTarget(-pgid)
}

// WaitPID targets one child.
func WaitPID(pid ID) WaitTarget {
	return WaitTarget(pid)
}

// WaitOptions controls Wait.
// WaitOptions 控制 Wait 的行为。
type WaitOptions struct {
	// NoHang returns a zero result instead of blocking
	// NoHang 不阻塞，直接返回零值结果
	NoHang bool
}

// WaitResult describes a reaped child. PID is NoPID when NoHang found nothing.
// WaitResult 描述被回收的子进程；NoHang 未找到时 PID 为 NoPID。
type WaitResult struct {
	PID    ID         `json:"pid"`
	Status WaitStatus `json:"status"`
	Usage  Rusage     `json:"usage"`
}

// Exit turns p into a zombie. Its children go to the reaper and its parent is woken.
// Exit 将 p 变为僵尸进程，其子进程交给收养进程，并唤醒父进程。
func (m *Manager) Exit(ctx context.Context, p *Process, status WaitStatus, usage Rusage) {
	ctx, span := otel_trace.Start(ctx, "process.exit")
	defer span.End()

	p.ExitLock.Lock()
	if p.exited {
		p.ExitLock.Unlock()
		m.die(ctx, "process exited twice / 进程重复退出", zap.Int32("pid", int32(p.pid)))
		return
	}
	p.exited = true
	p.exitStatus = status
	p.usage = usage
	p.exitedAt = time.Now()
	p.vforkDone = true
	p.VforkDone.Broadcast()
	p.ExitLock.Unlock()

	m.table.mu.Lock()
	p.zombie.Store(true)
	reaper, zombies := m.reparentLocked(p)
	parent := m.table.procLocked(p.ppid)
	m.table.mu.Unlock()

	if parent != nil {
		notifyChildExit(parent)
	}
	if reaper != nil && zombies {
		notifyChildExit(reaper)
	}

	processesZombie.Inc()
	span.SetAttributes(attribute.Int("pid", int(p.pid)), attribute.Int("status", int(status)))
	logger.Debug(ctx, "process exited / 进程已退出", zap.Int32("pid", int32(p.pid)), zap.Uint32("status", uint32(status)))

	m.emit(ctx, EventExited, p)
}

// Wait reaps one zombie child of parent that matches target. Without NoHang it
// blocks until such a child exits. It returns ErrNoChildren when nothing matches.
// Wait 回收 parent 的一个匹配 target 的僵尸子进程；未设置 NoHang 时会阻塞直到有子进程退出。
// 没有匹配的子进程时返回 ErrNoChildren。
func (m *Manager) Wait(ctx context.Context, parent *Process, target WaitTarget, opts WaitOptions) (WaitResult, error) {
	for {
		parent.ExitLock.Lock()
		gen := parent.exitGen
		parent.ExitLock.Unlock()

		zombie, matched := m.scanChildren(parent, target)
		if !matched {
			return WaitResult{}, ErrNoChildren
		}
		if zombie != nil {
			return m.reap(ctx, parent, zombie), nil
		}
		if opts.NoHang {
			return WaitResult{}, nil
		}

		parent.ExitLock.Lock()
		for parent.exitGen == gen {
			parent.ChildExit.Wait()
		}
		parent.ExitLock.Unlock()
	}
}

// scanChildren reports whether any child matches target and claims a matching
// zombie if there is one. A claimed zombie belongs to exactly one waiter.
func (m *Manager) scanChildren(parent *Process, target WaitTarget) (*Process, bool) {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	var pgid ID
	switch {
	case target == WaitOwnGroup:
		pgid = parent.pgid
	case target < WaitAny:
		pgid = ID(-target)
	}

	matched := false
	for _, c := range childrenLocked(parent) {
		switch {
		case target > 0 && c.pid != ID(target):
			continue
		case pgid != NoPID && c.pgid != pgid:
			continue
		}
		if c.reaped.Load() {
			continue
		}
		matched = true
		if c.IsZombie() && c.reaped.CompareAndSwap(false, true) {
			return c, true
		}
	}
	return nil, matched
}

func (m *Manager) reap(ctx context.Context, parent, child *Process) WaitResult {
	ctx, span := otel_trace.Start(ctx, "process.reap")
	defer span.End()

	child.ExitLock.Lock()
	res := WaitResult{PID: child.pid, Status: child.exitStatus, Usage: child.usage}
	grand := child.ChildrenRusage
	child.ExitLock.Unlock()

	parent.ExitLock.Lock()
	parent.ChildrenRusage.Add(res.Usage)
	parent.ChildrenRusage.Add(grand)
	parent.ExitLock.Unlock()

	info := child.Info()
	m.Destroy(ctx, child)

	span.SetAttributes(attribute.Int("pid", int(res.PID)))
	logger.Debug(ctx, "process reaped / 进程已回收", zap.Int32("pid", int32(res.PID)), zap.Int32("parent", int32(parent.pid)))
	m.emitInfo(ctx, EventReaped, info)
	return res
}

// ReleaseVfork lets a parent blocked in WaitVfork resume. Exit calls it implicitly.
// ReleaseVfork 让阻塞在 WaitVfork 中的父进程继续执行；Exit 会隐式调用它。
func (p *Process) ReleaseVfork() {
	p.ExitLock.Lock()
	p.vforkDone = true
	p.VforkDone.Broadcast()
	p.ExitLock.Unlock()
}

// WaitVfork blocks until the vfork child p releases its parent.
// WaitVfork 阻塞直到 vfork 子进程 p 释放父进程。
func (p *Process) WaitVfork() {
	p.ExitLock.Lock()
	for !p.vforkDone {
		p.VforkDone.Wait()
	}
	p.ExitLock.Unlock()
}
