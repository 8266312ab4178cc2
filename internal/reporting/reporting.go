// Package reporting computes read-only aggregates over transfers and users.
// Nothing here touches the store; callers pass in the records.
package reporting

import (
	"time"

	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day key used by DailySeries.
const DateLayout = "2006-01-02"

type Summary struct {
	TotalCount    int             `json:"totalCount"`
	ReachedCount  int             `json:"reachedCount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	ReachedAmount decimal.Decimal `json:"reachedAmount"`
}

// PendingCount is the number of transfers not yet reached.
func (s Summary) PendingCount() int { return s.TotalCount - s.ReachedCount }

type DailyAmount struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

type UserCounts struct {
	Submitters int `json:"submitters"`
	Treasury   int `json:"treasury"`
}

type Report struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Summary     Summary       `json:"summary"`
	Daily       []DailyAmount `json:"daily"`
	Users       UserCounts    `json:"users"`
}

func Summarize(transfers []models.Transfer) Summary {
	s := Summary{TotalAmount: decimal.Zero, ReachedAmount: decimal.Zero}
	for _, t := range transfers {
		s.TotalCount++
		s.TotalAmount = s.TotalAmount.Add(t.Amount)
		if t.Status == models.StatusReached {
			s.ReachedCount++
			s.ReachedAmount = s.ReachedAmount.Add(t.Amount)
		}
	}
	return s
}

// DailySeries sums transfer amounts per calendar day over the windowDays
// days ending on now's date, oldest first. Days are taken in now's
// location, and days without transfers are present with a zero amount.
func DailySeries(transfers []models.Transfer, windowDays int, now time.Time) []DailyAmount {
	if windowDays <= 0 {
		return []DailyAmount{}
	}

	loc := now.Location()
	y, m, d := now.Date()
	series := make([]DailyAmount, windowDays)
	index := make(map[string]int, windowDays)
	for i := 0; i < windowDays; i++ {
		// time.Date normalises negative days across month boundaries
		day := time.Date(y, m, d-(windowDays-1-i), 0, 0, 0, 0, loc).Format(DateLayout)
		series[i] = DailyAmount{Date: day, Amount: decimal.Zero}
		index[day] = i
	}

	for _, t := range transfers {
		key := t.CreatedAt.In(loc).Format(DateLayout)
		if i, ok := index[key]; ok {
			series[i].Amount = series[i].Amount.Add(t.Amount)
		}
	}
	return series
}

func CountUsers(users []models.User) UserCounts {
	var c UserCounts
	for _, u := range users {
		switch u.Role {
		case models.RoleSubmitter:
			c.Submitters++
		case models.RoleTreasury:
			c.Treasury++
		}
	}
	return c
}

// Build assembles the full report shown to treasury staff.
func Build(users []models.User, transfers []models.Transfer, windowDays int, now time.Time) Report {
	return Report{
		GeneratedAt: now,
		Summary:     Summarize(transfers),
		Daily:       DailySeries(transfers, windowDays, now),
		Users:       CountUsers(users),
	}
}
