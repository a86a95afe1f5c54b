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

	"github.com/guestix/guestix/internal/logger"
	"go.uber.org/zap"
)

// Signal is a guest signal number in [1, NumSignals].
// Signal 是访客信号编号，取值范围 [1, NumSignals]。
type Signal int

// NumSignals is the number of guest signals.
const NumSignals = 64

const (
	SIGHUP  Signal = 1
	SIGINT  Signal = 2
	SIGQUIT Signal = 3
	SIGKILL Signal = 9
	SIGUSR1 Signal = 10
	SIGSEGV Signal = 11
	SIGUSR2 Signal = 12
	SIGPIPE Signal = 13
	SIGALRM Signal = 14
	SIGTERM Signal = 15
	SIGCHLD Signal = 17
	SIGCONT Signal = 18
	SIGSTOP Signal = 19
	SIGTSTP Signal = 20
)

func (s Signal) Valid() bool {
	return s >= 1 && s <= NumSignals
}

// SigSet is a set of signals, bit n-1 standing for signal n.
// SigSet 是信号集合，第 n-1 位代表信号 n。
type SigSet uint64

// unblockable signals are never masked
const unblockable = SigSet(1<<(SIGKILL-1) | 1<<(SIGSTOP-1))

func (s SigSet) Has(sig Signal) bool {
	return sig.Valid() && s&(1<<(sig-1)) != 0
}

func (s SigSet) Add(sig Signal) SigSet {
	if !sig.Valid() {
		return s
	}
	return s | 1<<(sig-1)
}

func (s SigSet) Del(sig Signal) SigSet {
	if !sig.Valid() {
		return s
	}
	return s &^ (1 << (sig - 1))
}

// Signals lists the members in ascending order.
// Signals 按升序列出集合中的信号。
func (s SigSet) Signals() []Signal {
	var out []Signal
	for sig := Signal(1); sig <= NumSignals; sig++ {
		if s.Has(sig) {
			out = append(out, sig)
		}
	}
	return out
}

// Kill marks sig pending on the live process id. Signal 0 only checks existence.
// Kill 将 sig 标记为存活进程 id 的待处理信号；信号 0 仅检查进程是否存在。
func (m *Manager) Kill(ctx context.Context, id ID, sig Signal) error {
	if sig != 0 && !sig.Valid() {
		return ErrInvalidArgument
	}
	p := m.table.LookupLive(id)
	if p == nil {
		return ErrNoSuchProcess
	}
	if sig != 0 {
		p.raise(sig)
		logger.Debug(ctx, "signal queued / 信号已排队", zap.Int32("pid", int32(id)), zap.Int("signal", int(sig)))
	}
	return nil
}

// KillGroup marks sig pending on every live member of the group pgid.
// KillGroup 将 sig 标记为进程组 pgid 中所有存活成员的待处理信号。
func (m *Manager) KillGroup(ctx context.Context, pgid ID, sig Signal) error {
	if sig != 0 && !sig.Valid() {
		return ErrInvalidArgument
	}
	delivered := 0
	for _, id := range m.table.GroupMembers(pgid) {
		p := m.table.LookupLive(id)
		if p == nil {
			continue
		}
		if sig != 0 {
			p.raise(sig)
		}
		delivered++
	}
	if delivered == 0 {
		return ErrNoSuchProcess
	}
	logger.Debug(ctx, "group signal queued / 进程组信号已排队",
		zap.Int32("pgid", int32(pgid)), zap.Int("signal", int(sig)), zap.Int("members", delivered))
	return nil
}

func (p *Process) raise(sig Signal) {
	p.SignalLock.Lock()
	p.pending = p.pending.Add(sig)
	p.SignalLock.Unlock()
}

// Pending returns the pending set, blocked signals included.
// Pending 返回待处理信号集合，包括被阻塞的信号。
func (p *Process) Pending() SigSet {
	p.SignalLock.Lock()
	defer p.SignalLock.Unlock()
	return p.pending
}

// SetBlocked replaces the blocked mask and returns the old one. SIGKILL and SIGSTOP stay unblocked.
// SetBlocked 替换阻塞掩码并返回旧值；SIGKILL 与 SIGSTOP 始终不会被阻塞。
func (p *Process) SetBlocked(set SigSet) SigSet {
	p.SignalLock.Lock()
	defer p.SignalLock.Unlock()
	old := p.Attrs.Blocked
	p.Attrs.Blocked = set &^ unblockable
	return old
}

// TakePending removes and returns the pending signals that are not blocked.
// TakePending 取出并返回未被阻塞的待处理信号。
func (p *Process) TakePending() SigSet {
	p.SignalLock.Lock()
	defer p.SignalLock.Unlock()
	ready := p.pending &^ (p.Attrs.Blocked &^ unblockable)
	p.pending &^= ready
	return ready
}
