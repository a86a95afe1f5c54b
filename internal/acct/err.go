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

package acct

import "errors"

// Error definitions for accounting operations.
// 记账操作的错误定义。
var (
	// ErrRecordNotFound indicates the requested record does not exist.
	// ErrRecordNotFound 表示请求的记录不存在。
	ErrRecordNotFound = errors.New("acct: record not found")
	// ErrBootIDEmpty indicates the boot ID is empty.
	// ErrBootIDEmpty 表示启动 ID 为空。
	ErrBootIDEmpty = errors.New("acct: boot ID cannot be empty")
	// ErrPIDInvalid indicates the pid is not positive.
	// ErrPIDInvalid 表示 pid 不是正数。
	ErrPIDInvalid = errors.New("acct: pid must be positive")
)
