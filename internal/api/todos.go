package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"todohub/internal/api/middleware"
	"todohub/internal/api/respond"
	"todohub/internal/model"
	"todohub/internal/pkg/metrics"
	"todohub/internal/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// createTodoRequest 创建任务的请求体。
type createTodoRequest struct {
	Title       string  `json:"title" binding:"required,max=255"`
	Description string  `json:"description" binding:"omitempty,max=1000"`
	Status      string  `json:"status" binding:"omitempty,oneof=pending completed"`
	Priority    string  `json:"priority" binding:"omitempty,oneof=low medium high"`
	Category    string  `json:"category" binding:"omitempty,max=50"`
	DueDate     *string `json:"dueDate"`
}

// updateTodoRequest 部分更新的请求体，nil 表示该字段不变。
type updateTodoRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Status      *string `json:"status" binding:"omitempty,oneof=pending completed"`
	Priority    *string `json:"priority" binding:"omitempty,oneof=low medium high"`
	Category    *string `json:"category" binding:"omitempty,max=50"`
	DueDate     *string `json:"dueDate"`
}

// listTodosQuery 列表查询参数。
type listTodosQuery struct {
	Page      int    `form:"page,default=1" binding:"min=1"`
	Limit     int    `form:"limit,default=10" binding:"min=1,max=100"`
	Status    string `form:"status" binding:"omitempty,oneof=pending completed"`
	Priority  string `form:"priority" binding:"omitempty,oneof=low medium high"`
	Category  string `form:"category" binding:"omitempty,max=50"`
	Search    string `form:"search" binding:"omitempty,max=100"`
	SortBy    string `form:"sortBy,default=createdAt" binding:"omitempty,oneof=createdAt updatedAt dueDate title priority"`
	SortOrder string `form:"sortOrder,default=desc" binding:"omitempty,oneof=asc desc"`
}

// handleCreateTodo 创建任务。
//
// POST /api/v1/todos
func (s *Server) handleCreateTodo(c *gin.Context) {
	var req createTodoRequest
	if !respond.BindJSON(c, &req) {
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		respond.ValidationFailed(c, []respond.FieldError{{
			Field: "title", Message: "title is required", Value: req.Title,
		}})
		return
	}

	var dueDate *time.Time
	if req.DueDate != nil {
		parsed, errs := parseDueDate(*req.DueDate, true)
		if errs != nil {
			respond.ValidationFailed(c, errs)
			return
		}
		dueDate = parsed
	}

	todo := model.Todo{
		UserID:      middleware.UserID(c),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      req.Status,
		Priority:    req.Priority,
		Category:    strings.TrimSpace(req.Category),
		DueDate:     dueDate,
	}
	if err := s.todos.Create(c.Request.Context(), &todo); err != nil {
		s.logger.Error("create todo failed", slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Failed to create todo")
		return
	}

	metrics.IncTodoCreated()
	respond.Data(c, http.StatusCreated, "Todo created successfully", gin.H{"todo": todo})
}

// handleListTodos 按过滤、排序、分页条件返回当前用户的任务。
//
// GET /api/v1/todos
func (s *Server) handleListTodos(c *gin.Context) {
	var q listTodosQuery
	if !respond.BindQuery(c, &q) {
		return
	}

	page, err := s.todos.List(c.Request.Context(), middleware.UserID(c), store.TodoFilter{
		Status:    q.Status,
		Priority:  q.Priority,
		Category:  q.Category,
		Search:    q.Search,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Page:      q.Page,
		Limit:     q.Limit,
	})
	if err != nil {
		s.logger.Error("list todos failed", slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Failed to fetch todos")
		return
	}

	respond.Data(c, http.StatusOK, "", gin.H{
		"todos": page.Todos,
		"pagination": gin.H{
			"page":  page.Page,
			"limit": page.Limit,
			"total": page.Total,
			"pages": page.Pages,
		},
	})
}

// handleGetTodo 返回单条任务。
//
// GET /api/v1/todos/:id
func (s *Server) handleGetTodo(c *gin.Context) {
	todoID, ok := parseTodoID(c)
	if !ok {
		return
	}

	todo, err := s.todos.GetOwned(c.Request.Context(), middleware.UserID(c), todoID)
	if err != nil {
		s.respondTodoError(c, err, "Failed to fetch todo")
		return
	}
	respond.Data(c, http.StatusOK, "", gin.H{"todo": todo})
}

// handleUpdateTodo 部分更新任务，只修改请求里出现的字段。
//
// PATCH /api/v1/todos/:id
func (s *Server) handleUpdateTodo(c *gin.Context) {
	todoID, ok := parseTodoID(c)
	if !ok {
		return
	}

	var req updateTodoRequest
	if !respond.BindJSON(c, &req) {
		return
	}

	todo, err := s.todos.GetOwned(c.Request.Context(), middleware.UserID(c), todoID)
	if err != nil {
		s.respondTodoError(c, err, "Failed to update todo")
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			respond.ValidationFailed(c, []respond.FieldError{{
				Field: "title", Message: "title cannot be empty", Value: *req.Title,
			}})
			return
		}
		todo.Title = title
	}
	if req.Description != nil {
		todo.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		todo.Status = *req.Status
	}
	if req.Priority != nil {
		todo.Priority = *req.Priority
	}
	if req.Category != nil {
		todo.Category = strings.TrimSpace(*req.Category)
	}
	if req.DueDate != nil {
		// 与创建不同，更新允许保留已经过去的日期
		parsed, errs := parseDueDate(*req.DueDate, false)
		if errs != nil {
			respond.ValidationFailed(c, errs)
			return
		}
		todo.DueDate = parsed
	}

	if err := s.todos.Save(c.Request.Context(), todo); err != nil {
		s.logger.Error("update todo failed", slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Failed to update todo")
		return
	}
	respond.Data(c, http.StatusOK, "Todo updated successfully", gin.H{"todo": todo})
}

// handleDeleteTodo 删除任务。
//
// DELETE /api/v1/todos/:id
func (s *Server) handleDeleteTodo(c *gin.Context) {
	todoID, ok := parseTodoID(c)
	if !ok {
		return
	}

	if err := s.todos.DeleteOwned(c.Request.Context(), middleware.UserID(c), todoID); err != nil {
		s.respondTodoError(c, err, "Failed to delete todo")
		return
	}
	metrics.IncTodoDeleted()
	respond.OK(c, "Todo deleted successfully")
}

// handleToggleTodo 在 pending 与 completed 之间切换任务状态。
//
// PATCH /api/v1/todos/:id/toggle
func (s *Server) handleToggleTodo(c *gin.Context) {
	todoID, ok := parseTodoID(c)
	if !ok {
		return
	}

	todo, err := s.todos.GetOwned(c.Request.Context(), middleware.UserID(c), todoID)
	if err != nil {
		s.respondTodoError(c, err, "Failed to update todo status")
		return
	}

	if todo.Status == model.StatusPending {
		todo.Status = model.StatusCompleted
	} else {
		todo.Status = model.StatusPending
	}

	if err := s.todos.Save(c.Request.Context(), todo); err != nil {
		s.logger.Error("toggle todo failed", slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Failed to update todo status")
		return
	}
	respond.Data(c, http.StatusOK, "Todo status updated", gin.H{"todo": todo})
}

// handleTodoStats 返回当前用户全量任务的统计。
//
// GET /api/v1/todos/stats
func (s *Server) handleTodoStats(c *gin.Context) {
	stats, err := s.todos.Stats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		s.logger.Error("todo stats failed", slog.String("error", err.Error()))
		respond.Error(c, http.StatusInternalServerError, "Failed to fetch todo statistics")
		return
	}
	respond.Data(c, http.StatusOK, "", gin.H{"stats": stats})
}

// respondTodoError 把 store 错误映射到响应：
// 不存在与不属于当前用户统一为 404，其余 500。
func (s *Server) respondTodoError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respond.Error(c, http.StatusNotFound, "Todo not found")
		return
	}
	s.logger.Error("todo store error", slog.String("error", err.Error()))
	respond.Error(c, http.StatusInternalServerError, fallback)
}

func parseTodoID(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		respond.ValidationFailed(c, []respond.FieldError{{
			Field: "id", Message: "Invalid todo ID format", Value: raw,
		}})
		return 0, false
	}
	return uint(id), true
}

// parseDueDate 解析 ISO-8601 日期并按需检查不得早于今天（按本地日历日比较）。
func parseDueDate(value string, rejectPast bool) (*time.Time, []respond.FieldError) {
	value = strings.TrimSpace(value)
	var parsed time.Time
	var err error
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		parsed, err = time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, []respond.FieldError{{
			Field: "dueDate", Message: "Due date must be a valid ISO 8601 date", Value: value,
		}}
	}

	if rejectPast {
		now := time.Now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
		dueDay := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.Local)
		if dueDay.Before(today) {
			return nil, []respond.FieldError{{
				Field: "dueDate", Message: "Due date cannot be in the past", Value: value,
			}}
		}
	}
	return &parsed, nil
}

// 编译期检查 store 实现满足接口
var _ TodoStore = (*store.Todos)(nil)
