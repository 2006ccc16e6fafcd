// Package day работает с календарными сутками в заданном часовом поясе.
package day

import "time"

// Bounds возвращает полуинтервал [start, end) календарных суток, в которые попадает t.
// Сутки считаются в loc, поэтому переход на летнее время дает сутки длиной 23 или 25 часов.
func Bounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Key строковый ключ суток вида 2006-01-02.
func Key(t time.Time, loc *time.Location) string {
	start, _ := Bounds(t, loc)
	return start.Format(time.DateOnly)
}

// WeekStart начало семидневного окна, заканчивающегося сутками t включительно.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	start, _ := Bounds(t, loc)
	return start.AddDate(0, 0, -6)
}
