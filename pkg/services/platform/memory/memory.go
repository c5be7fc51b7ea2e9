// Package memory is an in-process platform used by tests and dry local runs.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/services/platform"
)

var _ platform.Platform = (*Platform)(nil)

type Calls struct {
	Get    int
	Set    int
	Delete int
	List   int
}

type Platform struct {
	mu            sync.Mutex
	subscriptions []domain.Subscription
	flowLogs      map[string]map[string]domain.FlowLog // subscription ID -> key -> flow log
	failures      map[string]error                     // "verb/name" -> error
	opened        []string
	calls         Calls
	whatIfCalls   int
}

func New(subscriptions ...domain.Subscription) *Platform {
	p := &Platform{
		subscriptions: subscriptions,
		flowLogs:      make(map[string]map[string]domain.FlowLog),
		failures:      make(map[string]error),
	}
	for _, s := range subscriptions {
		p.flowLogs[s.ID] = make(map[string]domain.FlowLog)
	}
	return p
}

func key(location, name string) string {
	return strings.ToLower(location) + "/" + name
}

// Put stores a flow log in the subscription with the given ID or name.
func (p *Platform) Put(subscription string, fl domain.FlowLog) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.lookup(subscription)
	if !ok {
		panic(fmt.Sprintf("unknown subscription %q", subscription))
	}
	p.flowLogs[sub.ID][key(fl.Location, fl.Name)] = fl
}

// FailOn makes the given verb fail for the named flow log.
func (p *Platform) FailOn(verb domain.Verb, name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[string(verb)+"/"+name] = err
}

func (p *Platform) FlowLog(subscription, location, name string) (domain.FlowLog, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.lookup(subscription)
	if !ok {
		return domain.FlowLog{}, false
	}
	fl, ok := p.flowLogs[sub.ID][key(location, name)]
	return fl, ok
}

func (p *Platform) Calls() Calls {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Platform) WhatIfCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.whatIfCalls
}

func (p *Platform) Opened() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.opened...)
}

func (p *Platform) Subscriptions(_ context.Context) ([]domain.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Subscription(nil), p.subscriptions...), nil
}

func (p *Platform) Open(_ context.Context, subscription string) (platform.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.lookup(subscription)
	if !ok {
		return nil, fmt.Errorf("subscription %q not found", subscription)
	}
	p.opened = append(p.opened, sub.String())
	return &session{platform: p, sub: sub}, nil
}

func (p *Platform) lookup(subscription string) (domain.Subscription, bool) {
	for _, s := range p.subscriptions {
		if s.ID == subscription || s.DisplayName == subscription {
			return s, true
		}
	}
	return domain.Subscription{}, false
}

func (p *Platform) failure(verb domain.Verb, name string) error {
	return p.failures[string(verb)+"/"+name]
}

type session struct {
	platform *Platform
	sub      domain.Subscription
}

func (s *session) Subscription() domain.Subscription {
	return s.sub
}

func (s *session) ListFlowLogs(_ context.Context, location string) ([]domain.FlowLog, error) {
	p := s.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls.List++

	var out []domain.FlowLog
	for _, fl := range p.flowLogs[s.sub.ID] {
		if strings.EqualFold(fl.Location, location) {
			out = append(out, fl)
		}
	}
	return out, nil
}

func (s *session) GetFlowLog(_ context.Context, location, name string) (*domain.FlowLog, error) {
	p := s.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls.Get++

	if err := p.failure(domain.VerbGet, name); err != nil {
		return nil, err
	}
	fl, ok := p.flowLogs[s.sub.ID][key(location, name)]
	if !ok {
		return nil, fmt.Errorf("flow log %q not found in %s", name, location)
	}
	return &fl, nil
}

func (s *session) SetFlowLog(_ context.Context, fl domain.FlowLog, whatIf bool) error {
	p := s.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls.Set++

	current, ok := p.flowLogs[s.sub.ID][key(fl.Location, fl.Name)]
	verb := domain.VerbUpdate
	if ok && current.Enabled != fl.Enabled {
		verb = domain.VerbDisable
		if fl.Enabled {
			verb = domain.VerbEnable
		}
	}
	if err := p.failure(verb, fl.Name); err != nil {
		return err
	}
	if whatIf {
		p.whatIfCalls++
		return nil
	}
	p.flowLogs[s.sub.ID][key(fl.Location, fl.Name)] = fl
	return nil
}

func (s *session) DeleteFlowLog(_ context.Context, location, name string, whatIf bool) error {
	p := s.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls.Delete++

	if err := p.failure(domain.VerbDelete, name); err != nil {
		return err
	}
	if whatIf {
		p.whatIfCalls++
		return nil
	}
	delete(p.flowLogs[s.sub.ID], key(location, name))
	return nil
}
