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
	"sort"
	"sync"
)

// ID is a process identifier. It also names a process group or session
// anchored at the slot of its leader.
// ID 是进程标识符，同时也作为锚定在首进程槽位上的进程组或会话的标识。
type ID int32

// NoPID means "no process", e.g. the ppid of a parentless process.
// NoPID 表示"无进程"，例如无父进程时的 ppid。
const NoPID ID = 0

// DefaultMaxPID is the largest pid of a table built without explicit capacity.
// DefaultMaxPID 是未显式指定容量时 PID 表的最大 pid。
const DefaultMaxPID = 32767

type slot struct {
	proc    *Process
	group   map[ID]*Process
	session map[ID]*Process
}

// empty is the only allocability test.
func (s *slot) empty() bool {
	return s.proc == nil && len(s.group) == 0 && len(s.session) == 0
}

// SlotInfo is a snapshot of one PID table slot.
// SlotInfo 是 PID 表中单个槽位的快照。
type SlotInfo struct {
	ID      ID       `json:"id"`
	Proc    *Process `json:"-"`
	Group   []ID     `json:"group"`
	Session []ID     `json:"session"`
}

// Table is the PID table. Its slots are reachable only through its methods.
// Table 是 PID 表，其槽位只能通过方法访问。
type Table struct {
	mu     sync.Mutex
	slots  []slot
	cursor ID
}

func newTable(maxPID int) *Table {
	if maxPID < 1 {
		maxPID = DefaultMaxPID
	}
	return &Table{
		slots:  make([]slot, maxPID+1),
		cursor: 1,
	}
}

// MaxPID returns the largest allocatable pid.
// MaxPID 返回可分配的最大 pid。
func (t *Table) MaxPID() ID {
	return ID(len(t.slots) - 1)
}

// Capacity returns the number of slots including the reserved slot 0.
// Capacity 返回包含保留槽位 0 在内的槽位数量。
func (t *Table) Capacity() int {
	return len(t.slots)
}

func (t *Table) inRange(id ID) bool {
	return id > NoPID && int(id) < len(t.slots)
}

// allocLocked scans from the rolling cursor for an empty slot. It gives up
// after one full wrap. The second result is the number of slots probed.
func (t *Table) allocLocked() (ID, int, error) {
	maxPID := t.MaxPID()
	for probed := 1; probed <= int(maxPID); probed++ {
		id := t.cursor
		t.cursor++
		if t.cursor > maxPID {
			t.cursor = 1
		}
		if t.slots[id].empty() {
			return id, probed, nil
		}
	}
	return NoPID, int(maxPID), ErrNoFreePID
}

// Lookup returns the slot snapshot. It reports false for an empty slot or an out-of-range id.
// Lookup 返回槽位快照；对于空槽位或越界 id 返回 false。
func (t *Table) Lookup(id ID) (SlotInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inRange(id) || t.slots[id].empty() {
		return SlotInfo{}, false
	}
	s := &t.slots[id]
	return SlotInfo{
		ID:      id,
		Proc:    s.proc,
		Group:   sortedIDs(s.group),
		Session: sortedIDs(s.session),
	}, true
}

// LookupZombie returns the process in the slot, zombies included.
// LookupZombie 返回槽位中的进程，包括僵尸进程。
func (t *Table) LookupZombie(id ID) *Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.procLocked(id)
}

// LookupLive returns the process in the slot unless it is a zombie.
// LookupLive 返回槽位中的进程，僵尸进程除外。
func (t *Table) LookupLive(id ID) *Process {
	p := t.LookupZombie(id)
	if p == nil || p.IsZombie() {
		return nil
	}
	return p
}

func (t *Table) procLocked(id ID) *Process {
	if !t.inRange(id) {
		return nil
	}
	return t.slots[id].proc
}

// Len returns the number of slots holding a process.
// Len 返回持有进程的槽位数量。
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.slots {
		if t.slots[i].proc != nil {
			n++
		}
	}
	return n
}

// Snapshot returns every process in ascending pid order.
// Snapshot 按 pid 升序返回所有进程。
func (t *Table) Snapshot() []*Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Process
	for i := range t.slots {
		if p := t.slots[i].proc; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// GroupMembers lists the pids in the process group pgid.
// GroupMembers 列出进程组 pgid 中的成员 pid。
func (t *Table) GroupMembers(pgid ID) []ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inRange(pgid) {
		return nil
	}
	return sortedIDs(t.slots[pgid].group)
}

// SessionMembers lists the pids in the session sid.
// SessionMembers 列出会话 sid 中的成员 pid。
func (t *Table) SessionMembers(sid ID) []ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inRange(sid) {
		return nil
	}
	return sortedIDs(t.slots[sid].session)
}

func (t *Table) joinGroupLocked(p *Process, pgid ID) {
	s := &t.slots[pgid]
	if s.group == nil {
		s.group = make(map[ID]*Process)
	}
	s.group[p.pid] = p
	p.pgid = pgid
}

func (t *Table) joinSessionLocked(p *Process, sid ID) {
	s := &t.slots[sid]
	if s.session == nil {
		s.session = make(map[ID]*Process)
	}
	s.session[p.pid] = p
	p.sid = sid
}

func (t *Table) leaveGroupLocked(p *Process) {
	if t.inRange(p.pgid) {
		delete(t.slots[p.pgid].group, p.pid)
	}
}

func (t *Table) leaveSessionLocked(p *Process) {
	if t.inRange(p.sid) {
		delete(t.slots[p.sid].session, p.pid)
	}
}

func sortedIDs[V any](m map[ID]V) []ID {
	ids := make([]ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
