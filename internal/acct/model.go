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

// Package acct provides process accounting records written when processes are reaped.
// acct 包提供进程被回收时写入的进程记账记录。
package acct

import (
	"time"

	"github.com/guestix/guestix/internal/process"
)

// Record is one accounting entry, in the spirit of BSD acct(2).
// Record 是一条记账记录，类似 BSD acct(2)。
type Record struct {
	ID         uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	BootID     string     `json:"boot_id" gorm:"size:36;not null;index"`
	PID        int32      `json:"pid" gorm:"not null;index"`
	PPID       int32      `json:"ppid"`
	PGID       int32      `json:"pgid"`
	SID        int32      `json:"sid"`
	Comm       string     `json:"comm" gorm:"size:64;index"`
	UID        uint32     `json:"uid"`
	GID        uint32     `json:"gid"`
	ExitStatus uint32     `json:"exit_status"`
	ExitCode   int        `json:"exit_code"`
	Signal     int        `json:"signal"`
	UserTimeUS int64      `json:"user_time_us"`
	SysTimeUS  int64      `json:"sys_time_us"`
	MaxRSS     int64      `json:"max_rss"`
	MinFlt     int64      `json:"min_flt"`
	MajFlt     int64      `json:"maj_flt"`
	NVCSw      int64      `json:"nvcsw"`
	NIVCSw     int64      `json:"nivcsw"`
	StartedAt  *time.Time `json:"started_at"`
	ExitedAt   time.Time  `json:"exited_at" gorm:"index"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for the Record model.
// TableName 指定 Record 模型的表名。
func (Record) TableName() string {
	return "process_acct"
}

// Filter represents filter criteria for querying records.
// Filter 表示查询记账记录的过滤条件。
type Filter struct {
	BootID    string     `json:"boot_id"`
	PID       *int32     `json:"pid"`
	Comm      string     `json:"comm"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// FromInfo converts the snapshot of a reaped process into a record.
// FromInfo 将已回收进程的快照转换为记账记录。
func FromInfo(bootID string, info *process.Info) *Record {
	rec := &Record{
		BootID:     bootID,
		PID:        int32(info.PID),
		PPID:       int32(info.PPID),
		PGID:       int32(info.PGID),
		SID:        int32(info.SID),
		Comm:       info.Comm,
		UID:        info.Cred.UID,
		GID:        info.Cred.GID,
		ExitStatus: uint32(info.ExitStatus),
		ExitCode:   info.ExitStatus.ExitCode(),
		Signal:     int(info.ExitStatus.Signal()),
		UserTimeUS: info.Usage.UserTime.Microseconds(),
		SysTimeUS:  info.Usage.SysTime.Microseconds(),
		MaxRSS:     info.Usage.MaxRSS,
		MinFlt:     info.Usage.MinFlt,
		MajFlt:     info.Usage.MajFlt,
		NVCSw:      info.Usage.NVCSw,
		NIVCSw:     info.Usage.NIVCSw,
		StartedAt:  info.StartedAt,
		ExitedAt:   time.Now(),
	}
	if info.ExitedAt != nil {
		rec.ExitedAt = *info.ExitedAt
	}
	return rec
}
