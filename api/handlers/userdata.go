package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/dataflow/internal/store"
	"github.com/BaSui01/dataflow/types"
)

// UserDataHandler 处理用户数据的 CRUD 操作
type UserDataHandler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewUserDataHandler 创建 UserDataHandler
func NewUserDataHandler(s *store.Store, logger *zap.Logger) *UserDataHandler {
	return &UserDataHandler{store: s, logger: logger}
}

// UserDataRequest 创建/更新请求体
type UserDataRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Validate 校验必填字段
func (req *UserDataRequest) Validate() *types.Error {
	if strings.TrimSpace(req.Name) == "" {
		return types.NewError(types.ErrValidation, "name is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return types.NewError(types.ErrValidation, "email is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return types.NewError(types.ErrValidation, "message is required")
	}
	return nil
}

// extractItemID 从请求中提取记录 ID（Go 1.22+ PathValue 优先，回退到路径解析）
func extractItemID(r *http.Request) (uint, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		// 回退：从路径手动解析
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 {
			return 0, false
		}
		idStr = parts[1]
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// parseQueryInt 解析查询参数，缺失时返回默认值，无法解析为整数时返回校验错误
func parseQueryInt(r *http.Request, key string, def int) (int, *types.Error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewError(types.ErrValidation, key+" must be an integer")
	}
	return v, nil
}

// HandleCollection 处理 /data 上的请求
func (h *UserDataHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
	}
}

// HandleItem 处理 /data/{id} 上的请求
func (h *UserDataHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.handleUpdate(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
	}
}

// handleCreate POST /data
func (h *UserDataHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req UserDataRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if verr := req.Validate(); verr != nil {
		WriteError(w, verr, h.logger)
		return
	}

	record := store.UserData{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	}

	if err := h.store.Create(r.Context(), &record); err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}

	h.logger.Info("record created",
		zap.Uint("id", record.ID),
		zap.String("name", record.Name),
	)

	WriteJSON(w, http.StatusCreated, record)
}

// handleList GET /data?skip=N&limit=M
func (h *UserDataHandler) handleList(w http.ResponseWriter, r *http.Request) {
	skip, verr := parseQueryInt(r, "skip", 0)
	if verr != nil {
		WriteError(w, verr, h.logger)
		return
	}
	limit, verr := parseQueryInt(r, "limit", store.DefaultListLimit)
	if verr != nil {
		WriteError(w, verr, h.logger)
		return
	}

	records, err := h.store.List(r.Context(), skip, limit)
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}

	// 空列表序列化为 [] 而非 null
	if records == nil {
		records = []store.UserData{}
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	WriteJSON(w, http.StatusOK, records)
}

// handleUpdate PUT /data/{id}
func (h *UserDataHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := extractItemID(r)
	if !ok {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid item id", h.logger)
		return
	}

	var req UserDataRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if verr := req.Validate(); verr != nil {
		WriteError(w, verr, h.logger)
		return
	}

	updated, err := h.store.Update(r.Context(), id, &store.UserData{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, updated)
}

// handleDelete DELETE /data/{id}
func (h *UserDataHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := extractItemID(r)
	if !ok {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid item id", h.logger)
		return
	}

	deleted, err := h.store.Delete(r.Context(), id)
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}

	h.logger.Info("record deleted", zap.Uint("id", id))

	WriteJSON(w, http.StatusOK, deleted)
}
