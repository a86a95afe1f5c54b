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

import "context"

type currentKey struct{}

// WithCurrent binds p as the current process of ctx.
// WithCurrent 将 p 绑定为 ctx 的当前进程。
func WithCurrent(ctx context.Context, p *Process) context.Context {
	return context.WithValue(ctx, currentKey{}, p)
}

// Current returns the process bound to ctx, or nil outside a process thread.
// Current 返回绑定在 ctx 上的进程；在进程线程之外返回 nil。
func Current(ctx context.Context) *Process {
	p, _ := ctx.Value(currentKey{}).(*Process)
	return p
}
