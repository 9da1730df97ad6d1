package model

// Assignment 指派表（一名人员在一个活动中占一个职能席位）— 对应 assignments
//
// OrderInActivity 是活动内的插入序号，唯一约束 (activity_id, order_in_activity)；
// 序号单调递增且允许空洞（移除席位不重排）。
type Assignment struct {
	ID               string     `gorm:"column:id;primaryKey"        json:"id"`
	ActivityID       string     `gorm:"column:activity_id;index"    json:"activity_id"`
	UserID           string     `gorm:"column:user_id;index"        json:"user_id"`
	Role             Profession `gorm:"column:role"                 json:"role"`
	OrderInActivity  int        `gorm:"column:order_in_activity"    json:"order_in_activity"`
	AllocatedMinutes *int       `gorm:"column:allocated_minutes"    json:"allocated_minutes,omitempty"`
}

// TableName 指定表名
func (Assignment) TableName() string { return TableAssignments }
