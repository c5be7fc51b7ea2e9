package domain

import "fmt"

type Action string

const (
	ActionEnabled         Action = "Enabled"
	ActionDisabled        Action = "Disabled"
	ActionDeleted         Action = "Deleted"
	ActionUpdated         Action = "Updated"
	ActionAlreadyEnabled  Action = "Ignored (already enabled)"
	ActionAlreadyDisabled Action = "Ignored (already disabled)"
	ActionFailed          Action = "Failed"
)

func (a Action) Ignored() bool {
	return a == ActionAlreadyEnabled || a == ActionAlreadyDisabled
}

// Verb names the platform call that failed for a record.
type Verb string

const (
	VerbGet     Verb = "get"
	VerbEnable  Verb = "enable"
	VerbDisable Verb = "disable"
	VerbDelete  Verb = "delete"
	VerbUpdate  Verb = "update"
)

type Failure struct {
	Verb    Verb
	Message string
}

func (f Failure) String() string {
	return fmt.Sprintf("failed to %s: %s", f.Verb, f.Message)
}

// ActionReport is the outcome of reconciling exactly one desired record.
type ActionReport struct {
	Name               string
	SubscriptionName   string
	Location           string
	TargetResourceType TargetType
	Action             Action
	Failure            *Failure
}

func (r ActionReport) Failed() bool {
	return r.Action == ActionFailed
}

func (r ActionReport) String() string {
	if r.Failure != nil {
		return fmt.Sprintf("%s: %s (%s)", r.Name, r.Action, r.Failure)
	}
	return fmt.Sprintf("%s: %s", r.Name, r.Action)
}

func Succeeded(record FlowLogRecord, action Action) ActionReport {
	return ActionReport{
		Name:               record.Name,
		SubscriptionName:   record.SubscriptionName,
		Location:           record.Location,
		TargetResourceType: record.TargetResourceType,
		Action:             action,
	}
}

func FailedWith(record FlowLogRecord, verb Verb, err error) ActionReport {
	report := Succeeded(record, ActionFailed)
	report.Failure = &Failure{Verb: verb, Message: err.Error()}
	return report
}
