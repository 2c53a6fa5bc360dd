package ask

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/agent"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/role"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/session"
	"github.com/zhouzirui/workshop-copilot/backend/pkg/utils"
)

// Asker 处理一条带角色标记的发言。
type Asker interface {
	Ask(ctx context.Context, roleName, text string) (*agent.Response, error)
}

// HistorySource 提供合并后的会话历史。
type HistorySource interface {
	CombinedHistory(ctx context.Context) session.CombinedHistory
}

// Handler 发言问答的HTTP处理器
type Handler struct {
	asker   Asker
	history HistorySource
	log     *logrus.Entry
}

// New 创建问答处理器
func New(asker Asker, history HistorySource) *Handler {
	return &Handler{asker: asker, history: history, log: logging.For("ask")}
}

// RegisterRoutes 注册问答相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ask", h.handleAsk)
	r.Get("/history", h.handleHistory)
}

type askRequest struct {
	Role *string `json:"role"`
	Text *string `json:"text"`
}

// handleAsk 执行一次智能体调用；内部失败时返回 200 与 null。
// 有意偏离框架默认行为：请求体格式错误返回 422，未知角色返回 400（而非 500）。
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload askRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if payload.Role == nil || payload.Text == nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "role and text are required")
		return
	}

	resp, err := h.asker.Ask(r.Context(), *payload.Role, *payload.Text)
	if err != nil {
		if errors.Is(err, role.ErrUnknownRole) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("ask failed")
		utils.RespondJSON(w, http.StatusOK, nil)
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleHistory 返回聊天与研讨记录
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.history.CombinedHistory(r.Context()))
}
