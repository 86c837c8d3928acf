package domain

import "time"

// TransitionRule is one legal move in a pipeline: applying Trigger from any
// state in Sources lands the workflow in Dest. Cycles must be spelled out as
// explicit rules.
type TransitionRule struct {
	Trigger string   `json:"trigger"`
	Sources []string `json:"sources"`
	Dest    string   `json:"dest"`
}

// PipelineTemplate is a named, versioned hiring pipeline definition. A
// template is immutable once an instance references it; edits create a new
// version row and running instances stay pinned to theirs.
type PipelineTemplate struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Version       int              `json:"version"`
	Description   string           `json:"description"`
	States        []string         `json:"states"`
	Rules         []TransitionRule `json:"rules"`
	Progress      map[string]int   `json:"progress"`      // state -> percentage, terminal states resolve to 100
	StateTimeouts map[string]int   `json:"stateTimeouts"` // state -> advisory timeout in minutes
	AllowReentry  bool             `json:"allowReentry"`  // permit rules out of states that end most journeys
	Active        bool             `json:"active"`
	Created       time.Time        `json:"created"`
	Updated       time.Time        `json:"updated"`
}
