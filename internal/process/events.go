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

// Event is a lifecycle transition of a process.
// Event 是进程的生命周期转换事件。
type Event string

const (
	EventCreated   Event = "created"
	EventStarted   Event = "started"
	EventExited    Event = "exited"
	EventReaped    Event = "reaped"
	EventDestroyed Event = "destroyed"
)

// EventHandler receives lifecycle events. It is called outside every lock and
// may call back into the Manager.
// EventHandler 接收生命周期事件；调用时不持有任何锁，可以回调 Manager。
type EventHandler func(ctx context.Context, ev Event, info *Info)

// ChainHandlers calls each non-nil handler in order.
// ChainHandlers 依次调用每个非空的处理器。
func ChainHandlers(handlers ...EventHandler) EventHandler {
	return func(ctx context.Context, ev Event, info *Info) {
		for _, h := range handlers {
			if h != nil {
				h(ctx, ev, info)
			}
		}
	}
}
