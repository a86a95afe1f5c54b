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

import "time"

// Rusage is the resource usage of a process or of its reaped descendants.
// Rusage 是进程或其已回收后代的资源使用量。
type Rusage struct {
	UserTime time.Duration `json:"user_time"`
	SysTime  time.Duration `json:"sys_time"`
	MaxRSS   int64         `json:"max_rss"`
	MinFlt   int64         `json:"min_flt"`
	MajFlt   int64         `json:"maj_flt"`
	NVCSw    int64         `json:"nvcsw"`
	NIVCSw   int64         `json:"nivcsw"`
}

// Add accumulates o into r. MaxRSS keeps the larger value.
// Add 将 o 累加到 r 中，MaxRSS 取较大值。
func (r *Rusage) Add(o Rusage) {
	r.UserTime += o.UserTime
	r.SysTime += o.SysTime
	if o.MaxRSS > r.MaxRSS {
		r.MaxRSS = o.MaxRSS
	}
	r.MinFlt += o.MinFlt
	r.MajFlt += o.MajFlt
	r.NVCSw += o.NVCSw
	r.NIVCSw += o.NIVCSw
}
