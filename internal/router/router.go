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

package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guestix/guestix/internal/config"
	"github.com/guestix/guestix/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// New builds the gin engine with every introspection route.
// New 构建包含所有内省路由的 gin 引擎。
func New(h *Handler, serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName), loggerMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1Router := r.Group("/api/v1")
	{
		apiV1Router.GET("/health", h.Health)

		procRouter := apiV1Router.Group("/procs")
		{
			procRouter.GET("", h.ListProcs)
			procRouter.GET("/:pid", h.GetProc)
			procRouter.GET("/:pid/children", h.GetChildren)
		}

		apiV1Router.GET("/groups/:pgid", h.GetGroup)
		apiV1Router.GET("/sessions/:sid", h.GetSession)
		apiV1Router.GET("/acct", h.ListAcct)
	}

	return r
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug(c.Request.Context(), "[API] request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Server runs the HTTP surface until its context is cancelled.
// Server 运行 HTTP 服务直到上下文被取消。
type Server struct {
	srv *http.Server
}

// NewServer creates a new Server
// NewServer 创建新的 Server
func NewServer(cfg config.HTTPConfig, h *Handler, serviceName string) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	return &Server{srv: &http.Server{
		Addr:              cfg.Addr,
		Handler:           New(h, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run serves until ctx is done, then shuts down gracefully.
// Run 持续服务直到 ctx 结束，然后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoF(ctx, "[API] listening on %s / 正在监听 %s", s.srv.Addr, s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
