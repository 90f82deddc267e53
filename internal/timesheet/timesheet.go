// Package timesheet extracts billing data from monthly timesheet exports.
package timesheet

import (
	"errors"
	"fmt"
)

// TestHours is the fixed share of each month billed as in-vehicle testing.
const TestHours = 16

var (
	ErrNoText      = errors.New("no text in timesheet")
	ErrNoHours     = errors.New("total hours not found")
	ErrNoDateRange = errors.New("date range not found")
	ErrBadPeriod   = errors.New("period not recognized")
)

var monthNames = [12]string{
	"januar", "februar", "marec", "april", "maj", "jun",
	"jul", "august", "september", "oktober", "november", "december",
}

// Info is the billing summary of one timesheet.
type Info struct {
	TotalHours int    `json:"total_hours"`
	DateRange  string `json:"date_range"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
}

// ArchHours is the share billed as software architecture design.
func (i Info) ArchHours() int {
	return max(0, i.TotalHours-TestHours)
}

// TestHours is the share billed as testing.
func (i Info) TestHours() int {
	return TestHours
}

// Amount is the invoice total for the given hourly rate.
func (i Info) Amount(rate int) int {
	return i.TotalHours * rate
}

// MonthName returns the Slovak name of the billing month.
func (i Info) MonthName() string {
	if i.Month < 1 || i.Month > 12 {
		return ""
	}
	return monthNames[i.Month-1]
}

// Period formats the billing month as MM/YYYY.
func (i Info) Period() string {
	return fmt.Sprintf("%02d/%d", i.Month, i.Year)
}

// ArchiveFolder formats the billing month as YYYY-MM.
func (i Info) ArchiveFolder() string {
	return fmt.Sprintf("%d-%02d", i.Year, i.Month)
}

// WithHours returns a copy of i with TotalHours replaced.
func (i Info) WithHours(hours int) Info {
	i.TotalHours = hours
	return i
}
