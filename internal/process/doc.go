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

// Package process provides the process-identity and lifecycle core of the guest kernel.
// process 包提供访客内核的进程标识与生命周期核心。
//
// This package provides:
// 此包提供：
// - A fixed-capacity PID table with group and session anchors / 带进程组与会话锚点的定长 PID 表
// - Process creation, exit, reap and destruction / 进程的创建、退出、回收与销毁
// - One dedicated native thread per process / 每个进程独占一个本地线程
// - Job control and signal targeting primitives / 作业控制与信号定位原语
//
// Lock order: the table lock is always taken before any per-process lock.
// 锁顺序：总是先获取表锁，再获取进程自身的锁。
package process
