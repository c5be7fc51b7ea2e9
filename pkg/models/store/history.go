package store

import "time"

type Run struct {
	ID         string
	Variant    string
	Mode       string
	Location   string
	WhatIf     bool
	Source     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Processed  int
	Failed     int
	Error      *string
}

type ActionReport struct {
	RunID          string
	Seq            int
	Name           string
	Subscription   string
	Location       string
	TargetType     string
	Action         string
	FailureVerb    *string
	FailureMessage *string
	RecordedAt     time.Time
}
