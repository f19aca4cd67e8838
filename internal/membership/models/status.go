package models

import (
	"fmt"
)

// Status is the membership lifecycle state.
type Status string

const (
	StatusActive      Status = "active"
	StatusBlacklisted Status = "blacklisted"
	StatusRemoved     Status = "removed"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusActive, StatusBlacklisted, StatusRemoved}

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusBlacklisted, StatusRemoved:
		return true
	}
	return false
}

// ParseStatus rejects unknown values.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown membership status %q", v)
	}
	return s, nil
}

// NonRemoved returns the statuses whose identity account must stay enabled.
func NonRemoved() []Status {
	return []Status{StatusActive, StatusBlacklisted}
}

// WantsIdentityDisabled reports the identity flag this status implies.
func (s Status) WantsIdentityDisabled() bool {
	return s == StatusRemoved
}
