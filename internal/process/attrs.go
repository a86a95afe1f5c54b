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

// Resource limit indexes, matching the Linux RLIMIT_* numbering.
// 资源限制索引，与 Linux 的 RLIMIT_* 编号一致。
const (
	RlimitCPU = iota
	RlimitFsize
	RlimitData
	RlimitStack
	RlimitCore
	RlimitRSS
	RlimitNproc
	RlimitNofile
	RlimitMemlock
	RlimitAS
	RlimitLocks
	RlimitSigpending
	RlimitMsgqueue
	RlimitNice
	RlimitRtprio
	RlimitRttime
	NumRlimits
)

// RlimInfinity is the "no limit" value.
const RlimInfinity = ^uint64(0)

// Rlimit is a soft/hard resource limit pair.
// Rlimit 是软/硬资源限制对。
type Rlimit struct {
	Cur uint64 `json:"cur"`
	Max uint64 `json:"max"`
}

// Credentials are the real, effective and saved ids of a process.
// Credentials 是进程的真实、有效与保存的用户/组 ID。
type Credentials struct {
	UID  uint32 `json:"uid"`
	EUID uint32 `json:"euid"`
	SUID uint32 `json:"suid"`
	GID  uint32 `json:"gid"`
	EGID uint32 `json:"egid"`
	SGID uint32 `json:"sgid"`
}

// SigAction is the disposition of one signal.
// SigAction 是单个信号的处置方式。
type SigAction struct {
	Handler uint64 `json:"handler"`
	Flags   uint64 `json:"flags"`
	Mask    SigSet `json:"mask"`
}

// Attrs is the configuration a child inherits from its parent.
// Attrs 是子进程从父进程继承的配置。
//
// Attrs holds value types only, so plain assignment is a complete copy. Locks,
// conditions, identity and hierarchy links live on Process and are never part of it.
// Attrs 只包含值类型，因此直接赋值即为完整拷贝；锁、条件变量、标识与层级链接都位于 Process 上，不属于 Attrs。
type Attrs struct {
	Comm    string                `json:"comm"`
	Cred    Credentials           `json:"cred"`
	Umask   uint32                `json:"umask"`
	Rlimits [NumRlimits]Rlimit    `json:"rlimits"`
	Actions [NumSignals]SigAction `json:"-"`
	// Blocked is guarded by SignalLock once the process is started.
	Blocked SigSet `json:"blocked"`
}

// DefaultAttrs returns the attributes of a process created without a parent.
// DefaultAttrs 返回无父进程创建时的默认属性。
func DefaultAttrs() Attrs {
	a := Attrs{
		Comm:  "init",
		Umask: 0o022,
	}
	for i := range a.Rlimits {
		a.Rlimits[i] = Rlimit{Cur: RlimInfinity, Max: RlimInfinity}
	}
	a.Rlimits[RlimitStack] = Rlimit{Cur: 8 << 20, Max: RlimInfinity}
	a.Rlimits[RlimitNofile] = Rlimit{Cur: 1024, Max: 4096}
	a.Rlimits[RlimitCore] = Rlimit{Cur: 0, Max: RlimInfinity}
	return a
}

// Action returns the disposition of sig.
// Action 返回 sig 的处置方式。
func (a *Attrs) Action(sig Signal) SigAction {
	if !sig.Valid() {
		return SigAction{}
	}
	return a.Actions[sig-1]
}

// SetAction replaces the disposition of sig. SIGKILL and SIGSTOP cannot be changed.
// SetAction 替换 sig 的处置方式；SIGKILL 与 SIGSTOP 不可更改。
func (a *Attrs) SetAction(sig Signal, act SigAction) error {
	if !sig.Valid() || sig == SIGKILL || sig == SIGSTOP {
		return ErrInvalidArgument
	}
	a.Actions[sig-1] = act
	return nil
}
