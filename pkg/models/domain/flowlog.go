package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type TargetType string

const (
	TargetNIC     TargetType = "NIC"
	TargetSubnet  TargetType = "Subnet"
	TargetVNet    TargetType = "VNet"
	TargetNSG     TargetType = "NSG"
	TargetUnknown TargetType = "Unknown"
)

// Status is the state column of the inventory. Live state only ever uses
// Enabled and Disabled; desired state may also ask for Deleted or Updated.
type Status string

const (
	StatusEnabled  Status = "Enabled"
	StatusDisabled Status = "Disabled"
	StatusDeleted  Status = "Deleted"
	StatusUpdated  Status = "Updated"
)

func (s Status) Valid() bool {
	switch s {
	case StatusEnabled, StatusDisabled, StatusDeleted, StatusUpdated:
		return true
	}
	return false
}

func StatusFromEnabled(enabled bool) Status {
	if enabled {
		return StatusEnabled
	}
	return StatusDisabled
}

// NotAvailable is written in place of a traffic analytics interval when
// analytics is not configured on the flow log.
const NotAvailable = "N/A"

// Interval is an optional traffic analytics interval in minutes.
type Interval struct {
	Minutes int
	Set     bool
}

func IntervalOf(minutes int) Interval {
	return Interval{Minutes: minutes, Set: true}
}

func (i Interval) String() string {
	if !i.Set {
		return NotAvailable
	}
	return strconv.Itoa(i.Minutes)
}

func ParseInterval(raw string) (Interval, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, NotAvailable) {
		return Interval{}, nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid traffic analytics interval %q: %w", raw, err)
	}
	return IntervalOf(minutes), nil
}

// FlowLogRecord is one row of the inventory, either exported from live
// state or read back as desired state. Only Name, Location and (in the
// multi-subscription variant) SubscriptionName address the live resource.
type FlowLogRecord struct {
	Name               string
	SubscriptionName   string
	Location           string
	ResourceGroup      string
	TargetResourceName string
	TargetResourceType TargetType
	Status             Status
	TAInterval         Interval
}

type Subscription struct {
	ID          string
	DisplayName string
	TenantID    string
}

// Matches reports whether name is the ID or display name of s, ignoring
// case.
func (s Subscription) Matches(name string) bool {
	return strings.EqualFold(s.ID, name) || strings.EqualFold(s.DisplayName, name)
}

func (s Subscription) String() string {
	if s.DisplayName == "" {
		return s.ID
	}
	return s.DisplayName
}

type RetentionPolicy struct {
	Enabled bool
	Days    int
}

type TrafficAnalytics struct {
	Enabled             bool
	WorkspaceID         string
	WorkspaceRegion     string
	WorkspaceResourceID string
	Interval            Interval
}

// FlowLog is the live resource as reported by the platform.
type FlowLog struct {
	ID               string
	Name             string
	Location         string
	TargetResourceID string
	StorageID        string
	Enabled          bool
	Retention        *RetentionPolicy
	TrafficAnalytics *TrafficAnalytics
}

func (f FlowLog) Interval() Interval {
	if f.TrafficAnalytics == nil {
		return Interval{}
	}
	return f.TrafficAnalytics.Interval
}
