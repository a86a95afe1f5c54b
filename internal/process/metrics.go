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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guestix_process_created_total",
		Help: "Total number of processes created",
	})

	processesDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guestix_process_destroyed_total",
		Help: "Total number of processes destroyed",
	})

	processesLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guestix_process_live",
		Help: "Number of processes occupying a pid slot",
	})

	processesZombie = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guestix_process_zombies",
		Help: "Number of exited processes awaiting reap",
	})

	pidExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guestix_pid_exhausted_total",
		Help: "Total number of creations rejected because the pid table was full",
	})

	pidScanLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guestix_pid_scan_length",
		Help:    "Number of slots probed per pid allocation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 9),
	})

	threadsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guestix_threads_started_total",
		Help: "Total number of process threads started",
	})
)
