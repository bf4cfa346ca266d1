package usage

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/renkeyss/cch-bot/internal/model/exchange"
	"github.com/renkeyss/cch-bot/internal/service/quota"
	"github.com/renkeyss/cch-bot/pkg/utils"
)

const defaultRecentLimit = 20

// QuotaReader 只读访问配额状态
type QuotaReader interface {
	Snapshot(userID string) (quota.Usage, bool)
	Stats() quota.Stats
}

// HistoryReader 读取最近的问答记录
type HistoryReader interface {
	Recent(ctx context.Context, userID string, limit int) ([]exchange.Exchange, error)
}

// Handler 用量查询的HTTP处理器
type Handler struct {
	quota      QuotaReader
	history    HistoryReader
	adminToken string
}

// New 创建用量处理器，history 可以为空
func New(quotaReader QuotaReader, history HistoryReader, adminToken string) *Handler {
	return &Handler{
		quota:      quotaReader,
		history:    history,
		adminToken: adminToken,
	}
}

type userUsageResponse struct {
	quota.Usage
	Known  bool                `json:"known"`
	Recent []exchange.Exchange `json:"recent"`
}

type statsResponse struct {
	Users     int `json:"users"`
	Exhausted int `json:"exhausted"`
	Reserved  int `json:"reserved"`
}

// RegisterRoutes 注册用量相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/usage", h.handleStats)
		r.Get("/usage/{userID}", h.handleUserUsage)
	})
}

// requireAdmin 校验 Bearer token
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || h.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleStats 返回当前窗口内的汇总用量
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.quota.Stats()
	utils.RespondJSON(w, http.StatusOK, statsResponse{
		Users:     stats.Users,
		Exhausted: stats.Exhausted,
		Reserved:  stats.Reserved,
	})
}

// handleUserUsage 返回单个用户的配额和最近问答
func (h *Handler) handleUserUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	usage, known := h.quota.Snapshot(userID)
	resp := userUsageResponse{Usage: usage, Known: known, Recent: []exchange.Exchange{}}

	if h.history != nil {
		recent, err := h.history.Recent(r.Context(), userID, limit)
		if err != nil {
			log.Printf("[usage] failed to load exchanges for %s: %v", userID, err)
			utils.RespondError(w, http.StatusInternalServerError, "failed to load exchanges")
			return
		}
		if recent != nil {
			resp.Recent = recent
		}
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}
