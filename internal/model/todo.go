package model

import "time"

// Todo 状态枚举。没有其他状态，唯一的状态迁移是 pending <-> completed 互相切换。
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Todo 优先级枚举。
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidStatus 判断 s 是否为合法的任务状态。
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusCompleted
}

// ValidPriority 判断 p 是否为合法的优先级。
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Todo 表示一条待办任务。
//
// 每条任务归属于唯一的用户（UserID），归属关系创建后不可变更；
// 所有读写操作都必须以 user_id 作为强制过滤条件。
type Todo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"` // 创建时间
	UpdatedAt time.Time `json:"updatedAt"` // 更新时间

	UserID uint `gorm:"not null;index:idx_todos_user_status;index:idx_todos_user_priority;index:idx_todos_user_due;index:idx_todos_user_category" json:"userId"` // 所属用户 ID
	User   User `gorm:"foreignKey:UserID" json:"-"`

	Title       string     `gorm:"type:varchar(255);not null" json:"title"`                                // 标题（必填，<=255 字符）
	Description string     `gorm:"type:varchar(1000)" json:"description,omitempty"`                        // 描述（可选，<=1000 字符）
	Status      string     `gorm:"type:varchar(16);default:pending;index:idx_todos_user_status" json:"status"`    // 状态: pending / completed
	Priority    string     `gorm:"type:varchar(16);default:medium;index:idx_todos_user_priority" json:"priority"` // 优先级: low / medium / high
	Category    string     `gorm:"type:varchar(50);index:idx_todos_user_category" json:"category,omitempty"`      // 分类（可选自由文本，<=50 字符）
	DueDate     *time.Time `gorm:"index:idx_todos_user_due" json:"dueDate,omitempty"`                      // 截止日期（可选）
}
