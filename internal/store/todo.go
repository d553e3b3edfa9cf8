package store

import (
	"context"
	"fmt"
	"strings"

	"todohub/internal/model"

	"gorm.io/gorm"
)

// TodoFilter 描述任务列表查询的过滤、排序与分页参数。
//
// 除 owner（调用方单独传入且不可覆盖）之外所有条件均可选；
// 等值过滤之间为 AND 关系，Search 命中标题或描述任意一个即可。
type TodoFilter struct {
	Status   string // pending / completed
	Priority string // low / medium / high
	Category string // 精确匹配
	Search   string // 标题或描述的大小写无关子串匹配

	SortBy    string // createdAt / updatedAt / dueDate / title / priority，默认 createdAt
	SortOrder string // asc / desc，默认 desc

	Page  int // 从 1 开始，默认 1
	Limit int // 1..100，默认 10
}

// TodoPage 是一页查询结果及分页元信息。
type TodoPage struct {
	Todos []model.Todo `json:"todos"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int64        `json:"total"`
	Pages int          `json:"pages"`
}

// TodoStats 是单个用户全量任务的聚合统计。
type TodoStats struct {
	Total      int64          `json:"total"`
	Pending    int64          `json:"pending"`
	Completed  int64          `json:"completed"`
	ByPriority PriorityCounts `json:"byPriority"`
	Categories []string       `json:"categories"`
}

// PriorityCounts 按优先级统计的任务数。
type PriorityCounts struct {
	High   int64 `json:"high"`
	Medium int64 `json:"medium"`
	Low    int64 `json:"low"`
}

// sortColumns 将 API 的排序字段映射到数据库列，兼做白名单。
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"title":     "title",
	"priority":  "priority",
}

// Todos 基于 GORM 提供任务的持久化与查询。
type Todos struct {
	db *gorm.DB
}

func NewTodos(db *gorm.DB) *Todos {
	return &Todos{db: db}
}

// Create 持久化一条新任务，回填生成的 ID 与时间戳。
func (s *Todos) Create(ctx context.Context, todo *model.Todo) error {
	if todo.Status == "" {
		todo.Status = model.StatusPending
	}
	if todo.Priority == "" {
		todo.Priority = model.PriorityMedium
	}
	return s.db.WithContext(ctx).Create(todo).Error
}

// List 返回 userID 名下经过过滤、排序、分页的任务。
//
// user_id 过滤强制生效；分页前先统计命中总数用于计算总页数。
// 排序使用 id 作相同方向的次级排序键，保证相等排序键下分页结果稳定。
func (s *Todos) List(ctx context.Context, userID uint, f TodoFilter) (*TodoPage, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 10
	}

	query := s.db.WithContext(ctx).Model(&model.Todo{}).Where("user_id = ?", userID)

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		query = query.Where("priority = ?", f.Priority)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		query = query.Where(
			"LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!'",
			pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count todos: %w", err)
	}

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		direction = "ASC"
	}

	todos := []model.Todo{}
	err := query.
		Order(fmt.Sprintf("%s %s, id %s", column, direction, direction)).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&todos).Error
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	return &TodoPage{
		Todos: todos,
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: pages,
	}, nil
}

// GetOwned 按 (userID, todoID) 查找任务。
//
// 这是所有单条读写共用的 scoped lookup：不存在和属于他人返回同一个
// gorm.ErrRecordNotFound，上层无法区分，也就不会泄漏归属信息。
func (s *Todos) GetOwned(ctx context.Context, userID, todoID uint) (*model.Todo, error) {
	var todo model.Todo
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", todoID, userID).First(&todo).Error; err != nil {
		return nil, err
	}
	return &todo, nil
}

// Save 保存对已加载任务的修改。
func (s *Todos) Save(ctx context.Context, todo *model.Todo) error {
	return s.db.WithContext(ctx).Save(todo).Error
}

// DeleteOwned 删除 userID 名下的指定任务；无命中返回 gorm.ErrRecordNotFound。
func (s *Todos) DeleteOwned(ctx context.Context, userID, todoID uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", todoID, userID).Delete(&model.Todo{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Stats 对 userID 的全量任务做聚合统计（不过滤、不分页，每次实时计算）。
func (s *Todos) Stats(ctx context.Context, userID uint) (*TodoStats, error) {
	type bucket struct {
		Key   string
		Count int64
	}

	stats := &TodoStats{Categories: []string{}}

	var statusBuckets []bucket
	err := s.db.WithContext(ctx).Model(&model.Todo{}).
		Select("status AS `key`, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&statusBuckets).Error
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for _, b := range statusBuckets {
		switch b.Key {
		case model.StatusPending:
			stats.Pending = b.Count
		case model.StatusCompleted:
			stats.Completed = b.Count
		}
		stats.Total += b.Count
	}

	var priorityBuckets []bucket
	err = s.db.WithContext(ctx).Model(&model.Todo{}).
		Select("priority AS `key`, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("priority").
		Scan(&priorityBuckets).Error
	if err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	for _, b := range priorityBuckets {
		switch b.Key {
		case model.PriorityHigh:
			stats.ByPriority.High = b.Count
		case model.PriorityMedium:
			stats.ByPriority.Medium = b.Count
		case model.PriorityLow:
			stats.ByPriority.Low = b.Count
		}
	}

	err = s.db.WithContext(ctx).Model(&model.Todo{}).
		Where("user_id = ? AND category <> ''", userID).
		Distinct().
		Order("category ASC").
		Pluck("category", &stats.Categories).Error
	if err != nil {
		return nil, fmt.Errorf("distinct categories: %w", err)
	}

	return stats, nil
}

// escapeLike 用 '!' 转义 LIKE 模式中的通配符。
// 不用反斜杠做转义符，避免 MySQL 字符串字面量对 '\' 的二次转义。
func escapeLike(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return r.Replace(s)
}
