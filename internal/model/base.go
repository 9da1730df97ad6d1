package model

// ── 表名常量 ──
// 观察查询订阅按表名匹配变更通知，统一在此定义避免散落的字符串。

const (
	TableUsers           = "users"
	TableUserProfessions = "user_professions"
	TableActivities      = "activities"
	TableRequirements    = "activity_role_requirements"
	TableAssignments     = "assignments"
	TableTimeSplits      = "activity_time_split"
)

// ── 职能 ──

// Profession 职能（岗位技能类别），以字符串形式入库
type Profession string

const (
	ProfessionYanir              Profession = "Yanir"
	ProfessionKitchen            Profession = "Kitchen"
	ProfessionSolider            Profession = "Solider"
	ProfessionOfficer            Profession = "Officer"
	ProfessionNegev              Profession = "Negev"
	ProfessionMag                Profession = "Mag"
	ProfessionMedic              Profession = "Medic"
	ProfessionShooter            Profession = "Shooter"
	ProfessionGunGrenadeLauncher Profession = "GunGrenadeLauncher"
	ProfessionDriver             Profession = "Driver"
	ProfessionUnknown            Profession = "Unknown"
)

// AllProfessions 所有可分配职能（不含 Unknown）
func AllProfessions() []Profession {
	return []Profession{
		ProfessionYanir, ProfessionKitchen, ProfessionSolider,
		ProfessionOfficer, ProfessionNegev, ProfessionMag,
		ProfessionMedic, ProfessionShooter, ProfessionGunGrenadeLauncher,
		ProfessionDriver,
	}
}

// ParseProfession 解析职能字符串，无法识别时回落为 Unknown
func ParseProfession(s string) Profession {
	switch Profession(s) {
	case ProfessionYanir, ProfessionKitchen, ProfessionSolider,
		ProfessionOfficer, ProfessionNegev, ProfessionMag,
		ProfessionMedic, ProfessionShooter, ProfessionGunGrenadeLauncher,
		ProfessionDriver:
		return Profession(s)
	default:
		return ProfessionUnknown
	}
}

// ── 班组 ──

// Team 班组（人员编组，同时可作为活动的参与限制）
type Team string

const (
	TeamDivision1   Team = "Division_1"
	TeamDivision2   Team = "Division_2"
	TeamDivision3   Team = "Division_3"
	TeamRETK        Team = "RETK"
	TeamCommandPost Team = "CommandPost"
	TeamYanir       Team = "YANIR"
	TeamUnknown     Team = "Unknown"
)

// ParseTeam 解析班组字符串，无法识别时回落为 Unknown
func ParseTeam(s string) Team {
	switch Team(s) {
	case TeamDivision1, TeamDivision2, TeamDivision3,
		TeamRETK, TeamCommandPost, TeamYanir:
		return Team(s)
	default:
		return TeamUnknown
	}
}

// ── 时间分段模式 ──

// TimeSplitMode 活动的时间分段模式标记
type TimeSplitMode string

const (
	TimeSplitNone TimeSplitMode = "NONE"
	TimeSplitEven TimeSplitMode = "EVEN"
)

// ParseTimeSplitMode 解析时间分段模式，无法识别时回落为 NONE
func ParseTimeSplitMode(s string) TimeSplitMode {
	if TimeSplitMode(s) == TimeSplitEven {
		return TimeSplitEven
	}
	return TimeSplitNone
}

// ── 聚合计数行 ──

// AssignedCountRow 按活动聚合的已指派数
type AssignedCountRow struct {
	ActivityID string `gorm:"column:activity_id"`
	Assigned   int    `gorm:"column:assigned"`
}

// RequiredCountRow 按活动聚合的需求总席位数
type RequiredCountRow struct {
	ActivityID string `gorm:"column:activity_id"`
	Required   int    `gorm:"column:required"`
}

const millisPerDay = 24 * 60 * 60 * 1000

// EpochDayOf 由 Unix 毫秒时间戳计算 UTC 天序号（冗余存储用于按天查询）
func EpochDayOf(unixMillis int64) int {
	if unixMillis < 0 {
		// 负时间戳向下取整到所在天
		return int((unixMillis - (millisPerDay - 1)) / millisPerDay)
	}
	return int(unixMillis / millisPerDay)
}
