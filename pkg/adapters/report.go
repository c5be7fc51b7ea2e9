package adapters

import (
	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/models/store"
)

func MapDomainReportToStore(runID string, seq int, r domain.ActionReport) store.ActionReport {
	sr := store.ActionReport{
		RunID:        runID,
		Seq:          seq,
		Name:         r.Name,
		Subscription: r.SubscriptionName,
		Location:     r.Location,
		TargetType:   string(r.TargetResourceType),
		Action:       string(r.Action),
	}
	if r.Failure != nil {
		verb := string(r.Failure.Verb)
		msg := r.Failure.Message
		sr.FailureVerb = &verb
		sr.FailureMessage = &msg
	}
	return sr
}

func MapStoreReportToDomain(sr store.ActionReport) domain.ActionReport {
	r := domain.ActionReport{
		Name:               sr.Name,
		SubscriptionName:   sr.Subscription,
		Location:           sr.Location,
		TargetResourceType: domain.TargetType(sr.TargetType),
		Action:             domain.Action(sr.Action),
	}
	if sr.FailureVerb != nil {
		r.Failure = &domain.Failure{Verb: domain.Verb(*sr.FailureVerb)}
		if sr.FailureMessage != nil {
			r.Failure.Message = *sr.FailureMessage
		}
	}
	return r
}
