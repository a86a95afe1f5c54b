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

// Setsid makes p the leader of a new session and a new group, both keyed by its pid.
// It fails with ErrPermission when p already leads a group.
// Setsid 使 p 成为新会话和新进程组的首进程，二者均以其 pid 为标识；
// 若 p 已是某进程组的首进程则返回 ErrPermission。
func (m *Manager) Setsid(ctx context.Context, p *Process) (ID, error) {
	m.table.mu.Lock()
	if p.destroyed {
		m.table.mu.Unlock()
		return NoPID, ErrNoSuchProcess
	}
	if p.pgid == p.pid || len(m.table.slots[p.pid].group) > 0 {
		m.table.mu.Unlock()
		return NoPID, ErrPermission
	}
	m.table.leaveGroupLocked(p)
	m.table.leaveSessionLocked(p)
	m.table.joinGroupLocked(p, p.pid)
	m.table.joinSessionLocked(p, p.pid)
	m.table.mu.Unlock()

	logger.Debug(ctx, "new session / 新会话", zap.Int32("sid", int32(p.pid)))
	return p.pid, nil
}

// Setpgid moves p into the group pgid, 0 meaning p's own pid. The group must
// be p itself or an existing group of p's session. Session leaders cannot move.
// Setpgid 将 p 移入进程组 pgid，0 表示 p 自身的 pid。目标进程组必须是 p 自身
// 或 p 所在会话中已存在的进程组；会话首进程不能移动。
func (m *Manager) Setpgid(ctx context.Context, p *Process, pgid ID) error {
	if pgid < 0 {
		return ErrInvalidArgument
	}
	if pgid == 0 {
		pgid = p.pid
	}

	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	if p.destroyed {
		return ErrNoSuchProcess
	}
	if !m.table.inRange(pgid) {
		return ErrInvalidArgument
	}
	if p.sid == p.pid {
		return ErrPermission
	}
	if pgid == p.pgid {
		return nil
	}
	if pgid != p.pid && !m.groupInSessionLocked(pgid, p.sid) {
		return ErrPermission
	}
	m.table.leaveGroupLocked(p)
	m.table.joinGroupLocked(p, pgid)
	return nil
}

func (m *Manager) groupInSessionLocked(pgid, sid ID) bool {
	for _, member := range m.table.slots[pgid].group {
		if member.sid == sid {
			return true
		}
	}
	return false
}
