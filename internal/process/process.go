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
	"sync"
	"sync/atomic"
	"time"
)

// State is the observable lifecycle state of a process.
// State 是进程可观察的生命周期状态。
type State string

const (
	// StateCreated indicates the process exists but has no thread yet
	// StateCreated 表示进程已存在但尚未拥有线程
	StateCreated State = "created"

	// StateRunning indicates the process thread has been started
	// StateRunning 表示进程线程已启动
	StateRunning State = "running"

	// StateZombie indicates the process exited and awaits reaping
	// StateZombie 表示进程已退出，等待回收
	StateZombie State = "zombie"
)

// Process is one emulated process. Processes are built only by Manager.Create.
// Process 表示一个模拟进程，只能由 Manager.Create 构建。
type Process struct {
	// Attrs is inherited from the parent at creation and owned by the process thread afterwards.
	// Comm and Cred are read by other goroutines, so they change only through SetComm and SetCred.
	// Attrs 在创建时从父进程继承，此后归进程自身线程所有。
	// Comm 与 Cred 会被其他 goroutine 读取，只能通过 SetComm 与 SetCred 修改。
	Attrs Attrs

	// HasTimer reports whether an interval timer is armed.
	// HasTimer 表示是否设置了间隔定时器。
	HasTimer atomic.Bool

	// SignalLock guards pending signals, Attrs.Blocked, Attrs.Comm and Attrs.Cred.
	// SignalLock 保护待处理信号、Attrs.Blocked、Attrs.Comm 与 Attrs.Cred。
	SignalLock sync.Mutex

	// ExitLock guards the exit fields, ChildrenRusage and both conditions.
	// ExitLock 保护退出相关字段、ChildrenRusage 以及两个条件变量。
	ExitLock sync.Mutex

	// ChildExit is broadcast when a child exits or is reaped.
	// ChildExit 在子进程退出或被回收时广播。
	ChildExit *sync.Cond

	// VforkDone is broadcast when a vfork child releases its parent.
	// VforkDone 在 vfork 子进程释放父进程时广播。
	VforkDone *sync.Cond

	// ChildrenRusage accumulates the usage of reaped children. Guarded by ExitLock.
	// ChildrenRusage 累计已回收子进程的资源使用量，受 ExitLock 保护。
	ChildrenRusage Rusage

	pid   ID
	table *Table

	// guarded by table.mu
	ppid      ID
	pgid      ID
	sid       ID
	children  map[ID]*Process
	destroyed bool

	zombie atomic.Bool
	reaped atomic.Bool

	// guarded by ExitLock
	exited     bool
	exitStatus WaitStatus
	usage      Rusage
	exitedAt   time.Time
	exitGen    uint64
	vforkDone  bool

	// guarded by SignalLock
	pending SigSet

	thread    threadState
	createdAt time.Time
}

type threadState struct {
	started   atomic.Bool
	tid       atomic.Int64
	startedAt atomic.Int64
}

// newProcess builds an entity with fresh synchronization state. It is not
// yet visible through any table.
func newProcess() *Process {
	p := &Process{
		children:  make(map[ID]*Process),
		createdAt: time.Now(),
	}
	p.ChildExit = sync.NewCond(&p.ExitLock)
	p.VforkDone = sync.NewCond(&p.ExitLock)
	return p
}

// PID returns the process id. It never changes.
// PID 返回进程 ID，在进程生命周期内保持不变。
func (p *Process) PID() ID {
	return p.pid
}

// PPID returns the parent pid, or NoPID once the process is detached.
// PPID 返回父进程 pid，脱离父进程后为 NoPID。
func (p *Process) PPID() ID {
	p.table.mu.Lock()
	defer p.table.mu.Unlock()
	return p.ppid
}

// PGID returns the process group id.
// PGID 返回进程组 ID。
func (p *Process) PGID() ID {
	p.table.mu.Lock()
	defer p.table.mu.Unlock()
	return p.pgid
}

// SID returns the session id.
// SID 返回会话 ID。
func (p *Process) SID() ID {
	p.table.mu.Lock()
	defer p.table.mu.Unlock()
	return p.sid
}

// Parent resolves the parent through the table. It returns nil for a parentless process.
// Parent 通过 PID 表解析父进程；无父进程时返回 nil。
func (p *Process) Parent() *Process {
	p.table.mu.Lock()
	defer p.table.mu.Unlock()
	return p.table.procLocked(p.ppid)
}

// Children returns the children in ascending pid order.
// Children 按 pid 升序返回子进程。
func (p *Process) Children() []*Process {
	p.table.mu.Lock()
	defer p.table.mu.Unlock()
	return childrenLocked(p)
}

// Siblings returns the other children of the parent.
// Siblings 返回父进程的其他子进程。
func (p *Process) Siblings() []*Process {
	p.table.mu.Lock()
	defer p.table.mu.Unlock()
	parent := p.table.procLocked(p.ppid)
	if parent == nil {
		return nil
	}
	var out []*Process
	for _, c := range childrenLocked(parent) {
		if c != p {
			out = append(out, c)
		}
	}
	return out
}

func childrenLocked(p *Process) []*Process {
	out := make([]*Process, 0, len(p.children))
	for _, id := range sortedIDs(p.children) {
		out = append(out, p.children[id])
	}
	return out
}

// IsZombie reports whether Exit has run and the process awaits reaping.
// IsZombie 返回进程是否已调用 Exit 并等待回收。
func (p *Process) IsZombie() bool {
	return p.zombie.Load()
}

// Comm returns the command name.
// Comm 返回命令名。
func (p *Process) Comm() string {
	p.SignalLock.Lock()
	defer p.SignalLock.Unlock()
	return p.Attrs.Comm
}

// SetComm renames the process.
// SetComm 修改进程的命令名。
func (p *Process) SetComm(comm string) {
	p.SignalLock.Lock()
	p.Attrs.Comm = comm
	p.SignalLock.Unlock()
}

// Cred returns the credentials.
// Cred 返回进程凭证。
func (p *Process) Cred() Credentials {
	p.SignalLock.Lock()
	defer p.SignalLock.Unlock()
	return p.Attrs.Cred
}

// SetCred replaces the credentials.
// SetCred 替换进程凭证。
func (p *Process) SetCred(cred Credentials) {
	p.SignalLock.Lock()
	p.Attrs.Cred = cred
	p.SignalLock.Unlock()
}

// inheritAttrs copies Attrs for a new child.
func (p *Process) inheritAttrs() Attrs {
	p.SignalLock.Lock()
	defer p.SignalLock.Unlock()
	return p.Attrs
}

// ExitStatus returns the status recorded by Exit.
// ExitStatus 返回 Exit 记录的退出状态。
func (p *Process) ExitStatus() WaitStatus {
	p.ExitLock.Lock()
	defer p.ExitLock.Unlock()
	return p.exitStatus
}

// ChildrenUsage returns a consistent copy of ChildrenRusage.
// ChildrenUsage 返回 ChildrenRusage 的一致性副本。
func (p *Process) ChildrenUsage() Rusage {
	p.ExitLock.Lock()
	defer p.ExitLock.Unlock()
	return p.ChildrenRusage
}

// TID returns the native thread id, or 0 before the thread runs.
// TID 返回本地线程 ID，线程运行前为 0。
func (p *Process) TID() int {
	return int(p.thread.tid.Load())
}

// State derives the lifecycle state from the thread and exit flags.
// State 根据线程与退出标志推导生命周期状态。
func (p *Process) State() State {
	switch {
	case p.IsZombie():
		return StateZombie
	case p.thread.started.Load():
		return StateRunning
	default:
		return StateCreated
	}
}

// Info is a JSON-serializable snapshot of a process.
// Info 是进程的可 JSON 序列化快照。
type Info struct {
	PID           ID          `json:"pid"`
	PPID          ID          `json:"ppid"`
	PGID          ID          `json:"pgid"`
	SID           ID          `json:"sid"`
	State         State       `json:"state"`
	Comm          string      `json:"comm"`
	Cred          Credentials `json:"cred"`
	Children      []ID        `json:"children"`
	TID           int         `json:"tid"`
	HasTimer      bool        `json:"has_timer"`
	ExitStatus    WaitStatus  `json:"exit_status"`
	Usage         Rusage      `json:"usage"`
	ChildrenUsage Rusage      `json:"children_usage"`
	CreatedAt     time.Time   `json:"created_at"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	ExitedAt      *time.Time  `json:"exited_at,omitempty"`
}

// Info takes a snapshot. It must not be called with an entity lock held.
// Info 生成快照；调用时不得持有进程自身的锁。
func (p *Process) Info() *Info {
	info := &Info{
		PID:       p.pid,
		State:     p.State(),
		TID:       p.TID(),
		HasTimer:  p.HasTimer.Load(),
		CreatedAt: p.createdAt,
	}
	p.SignalLock.Lock()
	info.Comm, info.Cred = p.Attrs.Comm, p.Attrs.Cred
	p.SignalLock.Unlock()
	if ns := p.thread.startedAt.Load(); ns != 0 {
		started := time.Unix(0, ns)
		info.StartedAt = &started
	}

	p.table.mu.Lock()
	info.PPID, info.PGID, info.SID = p.ppid, p.pgid, p.sid
	info.Children = sortedIDs(p.children)
	p.table.mu.Unlock()

	p.ExitLock.Lock()
	if p.exited {
		info.ExitStatus = p.exitStatus
		info.Usage = p.usage
		exitedAt := p.exitedAt
		info.ExitedAt = &exitedAt
	}
	info.ChildrenUsage = p.ChildrenRusage
	p.ExitLock.Unlock()

	return info
}
