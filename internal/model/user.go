package model

// User 人员表 — 对应 users
type User struct {
	ID             string `gorm:"column:id;primaryKey"          json:"id"`
	Name           string `gorm:"column:name;not null"          json:"name"`
	IsActive       bool   `gorm:"column:is_active;not null"     json:"is_active"`
	CanFillAnyRole bool   `gorm:"column:can_fill_any_role;not null" json:"can_fill_any_role"`
	Team           *Team  `gorm:"column:team"                   json:"team,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return TableUsers }

// UserProfession 人员↔职能 多对多关系表 — 对应 user_professions
// 复合主键 (user_id, profession)；所属人员删除时级联删除
type UserProfession struct {
	UserID     string     `gorm:"column:user_id;primaryKey"    json:"user_id"`
	Profession Profession `gorm:"column:profession;primaryKey" json:"profession"`
}

// TableName 指定表名
func (UserProfession) TableName() string { return TableUserProfessions }
