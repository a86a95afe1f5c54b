/*
 * MIT License
 *
 * Copyright (c) 2025 linux.do
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package otel_trace

import (
	"context"
	"sync"

	"github.com/guestix/guestix/internal/config"
	"github.com/guestix/guestix/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/guestix/guestix"

var (
	mu            sync.RWMutex
	Tracer        trace.Tracer
	shutdownFuncs []func(context.Context) error
	enabled       bool
)

// Init initializes the OpenTelemetry tracing based on configuration.
// Init 根据配置初始化 OpenTelemetry 追踪。
// This should be called after config is loaded.
// 这应该在配置加载后调用。
func Init(ctx context.Context, cfg config.TelemetryConfig) {
	mu.Lock()
	defer mu.Unlock()

	if !cfg.Enabled {
		logger.Info(ctx, "[Trace] OpenTelemetry tracing is disabled / OpenTelemetry 追踪已禁用")
		Tracer = noop.NewTracerProvider().Tracer("noop")
		enabled = false
		return
	}

	logger.Info(ctx, "[Trace] Initializing OpenTelemetry tracing... / 正在初始化 OpenTelemetry 追踪...",
		zap.String("endpoint", cfg.Endpoint))

	otel.SetTextMapPropagator(newPropagator())

	tracerProvider, err := newTracerProvider(ctx, cfg)
	if err != nil {
		logger.Warn(ctx, "[Trace] Failed to init trace provider, using noop tracer / 初始化追踪提供者失败，使用空操作追踪器",
			zap.Error(err))
		Tracer = noop.NewTracerProvider().Tracer("noop")
		enabled = false
		return
	}

	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	Tracer = tracerProvider.Tracer(instrumentationName)
	enabled = true
	logger.Info(ctx, "[Trace] OpenTelemetry tracing initialized / OpenTelemetry 追踪已初始化")
}

// IsEnabled returns whether tracing is enabled.
// IsEnabled 返回追踪是否已启用。
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

func Shutdown(ctx context.Context) {
	mu.Lock()
	fns := shutdownFuncs
	shutdownFuncs = nil
	enabled = false
	mu.Unlock()

	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			logger.Warn(ctx, "[Trace] shutdown failed / 关闭追踪失败", zap.Error(err))
		}
	}
}

func Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	mu.RLock()
	t := Tracer
	mu.RUnlock()
	if t == nil {
		// Return noop span if not initialized / 如果未初始化则返回空操作 span
		return ctx, noop.Span{}
	}
	return t.Start(ctx, name, opts...)
}
