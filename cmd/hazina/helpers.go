package main

import (
	"time"

	"hazina/internal/core"
)

func actorOr(a *app, actor string) string {
	if actor != "" {
		return actor
	}
	return a.cfg.DefaultActor
}

// dateOrToday parses a YYYY-MM-DD flag, defaulting to today when empty.
func dateOrToday(s string) (core.Date, error) {
	if s == "" {
		now := time.Now()
		return core.NewDate(now.Year(), int(now.Month()), now.Day()), nil
	}
	return core.ParseDate(s)
}
