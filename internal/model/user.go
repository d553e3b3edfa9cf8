package model

import "time"

// User 表示系统用户。
//
// Password 存储 bcrypt 哈希，序列化时永远不输出。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(50);not null" json:"name"`                 // 显示名称（2-50 字符）
	Email     string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`   // 邮箱（唯一，存储前统一小写）
	Password  string    `gorm:"not null" json:"-"`                                     // bcrypt 哈希
	CreatedAt time.Time `json:"createdAt"`                                             // 创建时间
	UpdatedAt time.Time `json:"updatedAt"`                                             // 更新时间

	Todos []Todo `gorm:"foreignKey:UserID" json:"-"`
}
