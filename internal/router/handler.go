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
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/guestix/guestix/internal/acct"
	"github.com/guestix/guestix/internal/logger"
	"github.com/guestix/guestix/internal/process"
)

// Handler provides HTTP handlers for process introspection.
// Handler 提供进程内省的 HTTP 处理器。
type Handler struct {
	manager *process.Manager
	repo    *acct.Repository
}

// NewHandler creates a new Handler instance. repo may be nil when accounting is disabled.
// NewHandler 创建一个新的 Handler 实例；记账禁用时 repo 可以为 nil。
func NewHandler(manager *process.Manager, repo *acct.Repository) *Handler {
	return &Handler{manager: manager, repo: repo}
}

// ==================== Request/Response Types 请求/响应类型 ====================

// HealthResponse represents the response for the health check.
// HealthResponse 表示健康检查的响应。
type HealthResponse struct {
	ErrorMsg string `json:"error_msg"`
	Data     *struct {
		Status    string `json:"status"`
		Processes int    `json:"processes"`
		MaxPID    int32  `json:"max_pid"`
	} `json:"data"`
}

// ListProcsResponse represents the response for listing processes.
// ListProcsResponse 表示获取进程列表的响应。
type ListProcsResponse struct {
	ErrorMsg string          `json:"error_msg"`
	Data     []*process.Info `json:"data"`
}

// GetProcResponse represents the response for one process.
// GetProcResponse 表示单个进程的响应。
type GetProcResponse struct {
	ErrorMsg string        `json:"error_msg"`
	Data     *process.Info `json:"data"`
}

// MembersResponse represents the members of a group or session.
// MembersResponse 表示进程组或会话的成员。
type MembersResponse struct {
	ErrorMsg string       `json:"error_msg"`
	Data     []process.ID `json:"data"`
}

// ListAcctRequest represents the request for listing accounting records.
// ListAcctRequest 表示获取记账记录列表的请求。
type ListAcctRequest struct {
	PID    *int32 `form:"pid" binding:"omitempty,min=1"`
	BootID string `form:"boot_id"`
	Comm   string `form:"comm"`
	Page   int    `form:"page" binding:"min=1"`
	Size   int    `form:"size" binding:"min=1,max=100"`
}

// ListAcctResponse represents the response for listing accounting records.
// ListAcctResponse 表示获取记账记录列表的响应。
type ListAcctResponse struct {
	ErrorMsg string `json:"error_msg"`
	Data     *struct {
		Total   int64          `json:"total"`
		Records []*acct.Record `json:"records"`
	} `json:"data"`
}

// ==================== Handlers 处理器 ====================

// Health handles GET /api/v1/health.
// Health 处理 GET /api/v1/health。
func (h *Handler) Health(c *gin.Context) {
	resp := HealthResponse{}
	resp.Data = &struct {
		Status    string `json:"status"`
		Processes int    `json:"processes"`
		MaxPID    int32  `json:"max_pid"`
	}{
		Status:    "ok",
		Processes: h.manager.Table().Len(),
		MaxPID:    int32(h.manager.Table().MaxPID()),
	}
	c.JSON(http.StatusOK, resp)
}

// ListProcs handles GET /api/v1/procs - lists every process in pid order.
// ListProcs 处理 GET /api/v1/procs - 按 pid 顺序列出所有进程。
func (h *Handler) ListProcs(c *gin.Context) {
	procs := h.manager.Table().Snapshot()
	infos := make([]*process.Info, 0, len(procs))
	for _, p := range procs {
		infos = append(infos, p.Info())
	}
	c.JSON(http.StatusOK, ListProcsResponse{Data: infos})
}

// GetProc handles GET /api/v1/procs/:pid.
// GetProc 处理 GET /api/v1/procs/:pid。
func (h *Handler) GetProc(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GetProcResponse{Data: p.Info()})
}

// GetChildren handles GET /api/v1/procs/:pid/children.
// GetChildren 处理 GET /api/v1/procs/:pid/children。
func (h *Handler) GetChildren(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}
	children := p.Children()
	infos := make([]*process.Info, 0, len(children))
	for _, child := range children {
		infos = append(infos, child.Info())
	}
	c.JSON(http.StatusOK, ListProcsResponse{Data: infos})
}

// GetGroup handles GET /api/v1/groups/:pgid.
// GetGroup 处理 GET /api/v1/groups/:pgid。
func (h *Handler) GetGroup(c *gin.Context) {
	id, ok := parseID(c, "pgid")
	if !ok {
		return
	}
	h.members(c, h.manager.GroupMembers(id))
}

// GetSession handles GET /api/v1/sessions/:sid.
// GetSession 处理 GET /api/v1/sessions/:sid。
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := parseID(c, "sid")
	if !ok {
		return
	}
	h.members(c, h.manager.SessionMembers(id))
}

func (h *Handler) members(c *gin.Context, ids []process.ID) {
	if len(ids) == 0 {
		c.JSON(http.StatusNotFound, MembersResponse{ErrorMsg: "成员为空 / No members"})
		return
	}
	c.JSON(http.StatusOK, MembersResponse{Data: ids})
}

// ListAcct handles GET /api/v1/acct - lists accounting records with filtering and pagination.
// ListAcct 处理 GET /api/v1/acct - 获取记账记录列表（支持过滤和分页）。
func (h *Handler) ListAcct(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, ListAcctResponse{ErrorMsg: "进程记账未启用 / Accounting is disabled"})
		return
	}
	req := &ListAcctRequest{Page: 1, Size: 20}
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, ListAcctResponse{ErrorMsg: err.Error()})
		return
	}

	recs, total, err := h.repo.List(c.Request.Context(), &acct.Filter{
		PID:      req.PID,
		BootID:   req.BootID,
		Comm:     req.Comm,
		Page:     req.Page,
		PageSize: req.Size,
	})
	if err != nil {
		logger.ErrorF(c.Request.Context(), "[Acct] 查询记账记录失败: %v", err)
		c.JSON(http.StatusInternalServerError, ListAcctResponse{ErrorMsg: err.Error()})
		return
	}

	c.JSON(http.StatusOK, ListAcctResponse{
		Data: &struct {
			Total   int64          `json:"total"`
			Records []*acct.Record `json:"records"`
		}{
			Total:   total,
			Records: recs,
		},
	})
}

func (h *Handler) lookup(c *gin.Context) (*process.Process, bool) {
	id, ok := parseID(c, "pid")
	if !ok {
		return nil, false
	}
	p := h.manager.LookupZombie(id)
	if p == nil {
		c.JSON(http.StatusNotFound, GetProcResponse{ErrorMsg: process.ErrNoSuchProcess.Error()})
		return nil, false
	}
	return p, true
}

var errInvalidID = errors.New("无效的 ID / Invalid id")

func parseID(c *gin.Context, name string) (process.ID, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, GetProcResponse{ErrorMsg: errInvalidID.Error()})
		return process.NoPID, false
	}
	return process.ID(v), true
}
