package utils

import (
	"time"
)

// SessionPhase describes where a timestamp falls in the trading day.
type SessionPhase string

const (
	SessionOpening  SessionPhase = "OPENING"
	SessionRegular  SessionPhase = "REGULAR"
	SessionClosing  SessionPhase = "CLOSING"
	SessionExtended SessionPhase = "EXTENDED"
	SessionClosed   SessionPhase = "CLOSED"
)

// MarketHours is an hour-of-day session table in UTC. Regular trading runs
// over [OpenHour, CloseHour); extended trading over [ExtendedOpenHour,
// ExtendedCloseHour). A close hour of 24 means midnight.
type MarketHours struct {
	OpenHour          int  `mapstructure:"open_hour"`
	CloseHour         int  `mapstructure:"close_hour"`
	ExtendedOpenHour  int  `mapstructure:"extended_open_hour"`
	ExtendedCloseHour int  `mapstructure:"extended_close_hour"`
	TradeWeekends     bool `mapstructure:"trade_weekends"`
}

// DefaultMarketHours approximates US equity hours in UTC.
func DefaultMarketHours() MarketHours {
	return MarketHours{
		OpenHour:          14,
		CloseHour:         21,
		ExtendedOpenHour:  9,
		ExtendedCloseHour: 24,
	}
}

// Phase returns the session phase for t. The first and last regular hours
// are reported as opening and closing windows.
func (m MarketHours) Phase(t time.Time) SessionPhase {
	t = t.UTC()
	if !m.TradeWeekends && (t.Weekday() == time.Saturday || t.Weekday() == time.Sunday) {
		return SessionClosed
	}

	hour := t.Hour()
	switch {
	case hour >= m.OpenHour && hour < m.CloseHour:
		if hour == m.OpenHour {
			return SessionOpening
		}
		if hour == m.CloseHour-1 {
			return SessionClosing
		}
		return SessionRegular
	case hour >= m.ExtendedOpenHour && hour < m.ExtendedCloseHour:
		return SessionExtended
	default:
		return SessionClosed
	}
}

// IsOpen reports whether orders can execute at t, in regular or extended hours.
func (m MarketHours) IsOpen(t time.Time) bool {
	return m.Phase(t) != SessionClosed
}

// IsRegular reports whether t falls inside regular trading hours.
func (m MarketHours) IsRegular(t time.Time) bool {
	switch m.Phase(t) {
	case SessionOpening, SessionRegular, SessionClosing:
		return true
	}
	return false
}

// Validate reports whether the table is internally consistent.
func (m MarketHours) Validate() bool {
	if m.OpenHour < 0 || m.CloseHour > 24 || m.OpenHour >= m.CloseHour {
		return false
	}
	if m.ExtendedOpenHour < 0 || m.ExtendedCloseHour > 24 || m.ExtendedOpenHour > m.ExtendedCloseHour {
		return false
	}
	return m.ExtendedOpenHour <= m.OpenHour && m.ExtendedCloseHour >= m.CloseHour
}

// NextOpen returns the next regular session open after t.
func (m MarketHours) NextOpen(t time.Time) time.Time {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), m.OpenHour, 0, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	for !m.TradeWeekends && (next.Weekday() == time.Saturday || next.Weekday() == time.Sunday) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
