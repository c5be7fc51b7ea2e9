package platform

import (
	"context"
	"errors"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
)

// ErrSession marks a failed switch to a subscription scope. It is always
// fatal to the run that hit it.
var ErrSession = errors.New("failed to switch subscription")

// Opener switches the working scope to one subscription. Every call into
// the platform goes through the Session it returns, so no ambient
// "current subscription" exists anywhere in the process.
type Opener interface {
	Open(ctx context.Context, subscription string) (Session, error)
}

// Directory enumerates the subscriptions the credential can access.
type Directory interface {
	Subscriptions(ctx context.Context) ([]domain.Subscription, error)
}

type Platform interface {
	Opener
	Directory
}

// Session is scoped to a single subscription. Implementations must be safe
// for concurrent use by the reconciler's workers.
type Session interface {
	Subscription() domain.Subscription
	ListFlowLogs(ctx context.Context, location string) ([]domain.FlowLog, error)
	GetFlowLog(ctx context.Context, location, name string) (*domain.FlowLog, error)
	// SetFlowLog persists the full configuration of the flow log. With
	// whatIf the call is validated but nothing is persisted.
	SetFlowLog(ctx context.Context, flowLog domain.FlowLog, whatIf bool) error
	DeleteFlowLog(ctx context.Context, location, name string, whatIf bool) error
}
