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
	"sync"

	"github.com/guestix/guestix/internal/logger"
	"github.com/guestix/guestix/internal/otel_trace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ReaperPID is the pid that adopts orphans while it is alive.
// ReaperPID 是存活时收养孤儿进程的 pid。
const ReaperPID ID = 1

// ManagerConfig holds the Manager configuration
// ManagerConfig 保存 Manager 的配置
type ManagerConfig struct {
	// MaxPID is the largest allocatable pid (default: DefaultMaxPID)
	// MaxPID 是可分配的最大 pid（默认：DefaultMaxPID）
	MaxPID int
}

// Manager creates, links, unlinks and destroys processes in one PID table.
// Manager 在一张 PID 表中创建、链接、解除链接并销毁进程。
type Manager struct {
	table *Table

	mu      sync.RWMutex
	handler EventHandler
	fatal   FatalFunc
}

// NewManager creates a new Manager
// NewManager 创建新的 Manager
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		table: newTable(cfg.MaxPID),
		fatal: defaultFatal,
	}
}

// SetEventHandler sets the lifecycle event handler
// SetEventHandler 设置生命周期事件处理器
func (m *Manager) SetEventHandler(h EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// SetFatalHandler replaces the handler for broken invariants. A nil handler restores the default.
// SetFatalHandler 替换不变量被破坏时的处理器；传入 nil 恢复默认处理器。
func (m *Manager) SetFatalHandler(f FatalFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f == nil {
		f = defaultFatal
	}
	m.fatal = f
}

func (m *Manager) Table() *Table {
	return m.table
}

func (m *Manager) Lookup(id ID) (SlotInfo, bool) {
	return m.table.Lookup(id)
}

func (m *Manager) LookupLive(id ID) *Process {
	return m.table.LookupLive(id)
}

func (m *Manager) LookupZombie(id ID) *Process {
	return m.table.LookupZombie(id)
}

func (m *Manager) GroupMembers(pgid ID) []ID {
	return m.table.GroupMembers(pgid)
}

func (m *Manager) SessionMembers(sid ID) []ID {
	return m.table.SessionMembers(sid)
}

func (m *Manager) die(ctx context.Context, msg string, fields ...zap.Field) {
	m.mu.RLock()
	f := m.fatal
	m.mu.RUnlock()
	f(ctx, msg, fields...)
}

func (m *Manager) emit(ctx context.Context, ev Event, p *Process) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()
	if h != nil {
		h(ctx, ev, p.Info())
	}
}

func (m *Manager) emitInfo(ctx context.Context, ev Event, info *Info) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()
	if h != nil {
		h(ctx, ev, info)
	}
}

// Create allocates a pid and builds a process. A nil parent makes the new
// process the leader of a new session and group. Otherwise the child copies
// the parent's Attrs and joins its group and session.
// Create 分配 pid 并构建进程。parent 为 nil 时，新进程成为新会话与新进程组的首进程；
// 否则子进程复制父进程的 Attrs 并加入其进程组与会话。
func (m *Manager) Create(ctx context.Context, parent *Process) (*Process, error) {
	return m.CreateWith(ctx, parent, nil)
}

// CreateWith is Create with a hook that edits the child's Attrs before the
// child becomes visible in the table.
// CreateWith 与 Create 相同，但会在子进程进入 PID 表之前调用 setup 修改其 Attrs。
func (m *Manager) CreateWith(ctx context.Context, parent *Process, setup func(*Attrs)) (*Process, error) {
	ctx, span := otel_trace.Start(ctx, "process.create")
	defer span.End()

	if parent != nil && parent.table != m.table {
		return nil, ErrInvalidArgument
	}

	p := newProcess()
	p.table = m.table
	if parent != nil {
		p.Attrs = parent.inheritAttrs()
	} else {
		p.Attrs = DefaultAttrs()
	}
	if setup != nil {
		setup(&p.Attrs)
	}

	m.table.mu.Lock()
	if parent != nil && (parent.destroyed || parent.IsZombie()) {
		m.table.mu.Unlock()
		return nil, ErrNoSuchProcess
	}
	id, probed, err := m.table.allocLocked()
	if err != nil {
		m.table.mu.Unlock()
		pidExhausted.Inc()
		span.SetStatus(codes.Error, err.Error())
		logger.Warn(ctx, "pid table exhausted / PID 表已耗尽", zap.Int32("max_pid", int32(m.table.MaxPID())))
		return nil, err
	}
	p.pid = id
	if parent != nil {
		p.ppid = parent.pid
		parent.children[id] = p
		m.table.joinGroupLocked(p, parent.pgid)
		m.table.joinSessionLocked(p, parent.sid)
	} else {
		p.ppid = NoPID
		m.table.joinGroupLocked(p, id)
		m.table.joinSessionLocked(p, id)
	}
	m.table.slots[id].proc = p
	m.table.mu.Unlock()

	pidScanLength.Observe(float64(probed))
	processesCreated.Inc()
	processesLive.Inc()
	span.SetAttributes(attribute.Int("pid", int(id)), attribute.Int("ppid", int(p.ppid)))
	logger.Debug(ctx, "process created / 进程已创建", zap.Int32("pid", int32(id)), zap.Int32("ppid", int32(p.ppid)))

	m.emit(ctx, EventCreated, p)
	return p, nil
}

// Destroy unlinks p from its parent, group and session, hands its children to
// the reaper and frees its slot. It must run exactly once per process.
// Destroy 将 p 从父进程、进程组与会话中解除链接，把其子进程交给收养进程并释放槽位。
// 每个进程只能执行一次。
func (m *Manager) Destroy(ctx context.Context, p *Process) {
	ctx, span := otel_trace.Start(ctx, "process.destroy")
	defer span.End()

	m.table.mu.Lock()
	if p.table != m.table || p.destroyed || m.table.slots[p.pid].proc != p {
		m.table.mu.Unlock()
		m.die(ctx, "process destroyed twice / 进程被重复销毁", zap.Int32("pid", int32(p.pid)))
		return
	}
	p.destroyed = true
	parent := m.table.procLocked(p.ppid)
	if parent != nil {
		delete(parent.children, p.pid)
	}
	m.table.leaveGroupLocked(p)
	m.table.leaveSessionLocked(p)
	reaper, zombies := m.reparentLocked(p)
	m.table.slots[p.pid].proc = nil
	m.table.mu.Unlock()

	if parent != nil {
		notifyChildExit(parent)
	}
	if reaper != nil && zombies {
		notifyChildExit(reaper)
	}

	processesDestroyed.Inc()
	processesLive.Dec()
	if p.IsZombie() {
		processesZombie.Dec()
	}
	span.SetAttributes(attribute.Int("pid", int(p.pid)))
	logger.Debug(ctx, "process destroyed / 进程已销毁", zap.Int32("pid", int32(p.pid)))

	m.emit(ctx, EventDestroyed, p)
}

// reparentLocked hands the children of p to the live reaper, or detaches them
// when there is none. It reports whether a zombie was handed over.
func (m *Manager) reparentLocked(p *Process) (*Process, bool) {
	if len(p.children) == 0 {
		return nil, false
	}
	reaper := m.table.procLocked(ReaperPID)
	if reaper == p || reaper == nil || reaper.destroyed || reaper.IsZombie() {
		reaper = nil
	}
	zombies := false
	for id, c := range p.children {
		delete(p.children, id)
		if reaper != nil {
			c.ppid = reaper.pid
			reaper.children[id] = c
		} else {
			c.ppid = NoPID
		}
		if c.IsZombie() {
			zombies = true
		}
	}
	return reaper, zombies
}

// notifyChildExit bumps the exit generation of p and wakes its waiters.
func notifyChildExit(p *Process) {
	p.ExitLock.Lock()
	p.exitGen++
	p.ChildExit.Broadcast()
	p.ExitLock.Unlock()
}
