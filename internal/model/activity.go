package model

// Activity 活动表（时间盒任务，如班次/勤务）— 对应 activities
//
// StartAt/EndAt 为 Unix 毫秒；DateEpochDay 由 StartAt 冗余派生，
// 用于按天范围的快速查询。不变式：EndAt ≥ StartAt（存储层之上校验）。
type Activity struct {
	ID            string        `gorm:"column:id;primaryKey"              json:"id"`
	Name          string        `gorm:"column:name;not null"              json:"name"`
	StartAt       int64         `gorm:"column:start_at;index"             json:"start_at"`
	EndAt         int64         `gorm:"column:end_at;index"               json:"end_at"`
	DateEpochDay  int           `gorm:"column:date_epoch_day;index"       json:"date_epoch_day"`
	Team          *Team         `gorm:"column:team"                       json:"team,omitempty"`
	TimeSplitMode TimeSplitMode `gorm:"column:time_split_mode;not null"   json:"time_split_mode"`
}

// TableName 指定表名
func (Activity) TableName() string { return TableActivities }

// ActivityRoleRequirement 活动职能需求表 — 对应 activity_role_requirements
// 唯一约束 (activity_id, profession)：一个活动的一个职能至多一行需求
type ActivityRoleRequirement struct {
	ID            string     `gorm:"column:id;primaryKey"       json:"id"`
	ActivityID    string     `gorm:"column:activity_id;index"   json:"activity_id"`
	Profession    Profession `gorm:"column:profession"          json:"profession"`
	RequiredCount int        `gorm:"column:required_count"      json:"required_count"`
}

// TableName 指定表名
func (ActivityRoleRequirement) TableName() string { return TableRequirements }
