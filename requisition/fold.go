package requisition

import (
	"strconv"

	"Gin_postgres_redis_supply_tool/models"
)

// Fold derives a request's overall status from its line statuses:
// pending while any line is pending, otherwise approved if at least one line was approved.
func Fold(statuses ...models.Status) models.Status {
	approved := false
	for _, s := range statuses {
		switch s {
		case models.StatusPending:
			return models.StatusPending
		case models.StatusApproved:
			approved = true
		}
	}
	if approved {
		return models.StatusApproved
	}
	return models.StatusRejected
}

func FoldLines(lines []models.RequestLine) models.Status {
	ss := make([]models.Status, len(lines))
	for i, l := range lines {
		ss[i] = l.Status
	}
	return Fold(ss...)
}

// locateLine 先按行 id 查找，找不到时把 ref 当作从 0 开始的位置（兼容旧客户端）
func locateLine(lines []models.RequestLine, ref string) (int, bool) {
	for i, l := range lines {
		if l.ID == ref {
			return i, true
		}
	}
	idx, err := strconv.Atoi(ref)
	if err != nil || idx < 0 || idx >= len(lines) {
		return -1, false
	}
	return idx, true
}
