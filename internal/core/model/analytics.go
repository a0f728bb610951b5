package model

import "time"

// DailyActivity is one day of the trailing-week report.
type DailyActivity struct {
	Date     string `json:"date"` // YYYY-MM-DD in local time
	Sessions int    `json:"sessions"`
	Tokens   int64  `json:"tokens"`
}

// Analytics summarizes session-start patterns for the current month plus
// per-day activity for the trailing seven days.
type Analytics struct {
	MostActiveHour    int             `json:"most_active_hour"`    // 0-23 local
	MostActiveWeekday time.Weekday    `json:"most_active_weekday"` // Sunday=0
	Daily             []DailyActivity `json:"daily"`
}
