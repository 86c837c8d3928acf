package engine

import (
	"sort"

	"github.com/hireflow/hireflow/internal/domain"
)

// Graph is the compiled, validated form of a template's transition rules.
// Lookup is by explicit source-set membership; there is no runtime dispatch
// table to mutate. Ambiguity is a configuration error caught here, never at
// evaluation time.
type Graph struct {
	template *domain.PipelineTemplate
	// state -> trigger -> destination
	edges map[string]map[string]string
}

// NewGraph compiles and validates a pipeline template. All configuration
// errors are reported at load so Resolve can only ever fail with
// ErrInvalidTransition.
func NewGraph(t *domain.PipelineTemplate) (*Graph, error) {
	if len(t.States) == 0 {
		return nil, templateInvalid("template %q has no states", t.Name)
	}
	known := make(map[string]bool, len(t.States))
	for _, s := range t.States {
		if known[s] {
			return nil, templateInvalid("template %q declares state %q twice", t.Name, s)
		}
		known[s] = true
	}

	edges := make(map[string]map[string]string, len(t.States))
	for _, rule := range t.Rules {
		if !known[rule.Dest] {
			return nil, templateInvalid("rule %q targets unknown state %q", rule.Trigger, rule.Dest)
		}
		for _, src := range rule.Sources {
			if !known[src] {
				return nil, templateInvalid("rule %q lists unknown source state %q", rule.Trigger, src)
			}
			byTrigger := edges[src]
			if byTrigger == nil {
				byTrigger = make(map[string]string)
				edges[src] = byTrigger
			}
			if _, dup := byTrigger[rule.Trigger]; dup {
				return nil, templateInvalid("trigger %q is ambiguous from state %q", rule.Trigger, src)
			}
			byTrigger[rule.Trigger] = rule.Dest
		}
	}

	g := &Graph{template: t, edges: edges}

	terminals := 0
	for _, s := range t.States {
		if g.IsTerminal(s) {
			terminals++
		}
	}
	if terminals == 0 {
		return nil, templateInvalid("template %q has no terminal state", t.Name)
	}

	if err := g.validateProgress(); err != nil {
		return nil, err
	}
	if !t.AllowReentry {
		// Strict policy: a state that ends a journey may not have outgoing
		// rules. Templates that want reconsider-style cycles must opt in,
		// which makes terminal-ness graph-relative for them.
		if err := g.validateNoTerminalExits(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Graph) validateProgress() error {
	prev := -1
	for _, s := range g.template.States {
		pct, ok := g.template.Progress[s]
		if g.IsTerminal(s) {
			if ok && pct != 100 {
				return templateInvalid("terminal state %q must map to progress 100, got %d", s, pct)
			}
			continue
		}
		if !ok {
			return templateInvalid("state %q has no progress mapping", s)
		}
		if pct < 0 || pct > 100 {
			return templateInvalid("state %q progress %d out of range", s, pct)
		}
		if pct < prev {
			return templateInvalid("progress map is not monotonic at state %q", s)
		}
		prev = pct
	}
	return nil
}

func (g *Graph) validateNoTerminalExits() error {
	// Under the strict policy a "terminal" declaration is implied by the
	// progress map: states pinned at 100 end the journey. Any outgoing rule
	// from such a state is rejected.
	for src, byTrigger := range g.edges {
		if g.template.Progress[src] == 100 && len(byTrigger) > 0 {
			for trigger := range byTrigger {
				return templateInvalid("state %q is terminal but has outgoing rule %q; set allowReentry to permit cycles", src, trigger)
			}
		}
	}
	return nil
}

// InitialState is the first declared state.
func (g *Graph) InitialState() string {
	return g.template.States[0]
}

// IsTerminal reports whether the state has no outgoing rule.
func (g *Graph) IsTerminal(state string) bool {
	return len(g.edges[state]) == 0
}

// EndsJourney reports whether entering the state completes the instance.
// Strict templates end only at terminal states. Reentry templates also end
// at states pinned to progress 100, even though a rule may later lead back
// out and reopen the instance.
func (g *Graph) EndsJourney(state string) bool {
	if g.IsTerminal(state) {
		return true
	}
	return g.template.AllowReentry && g.template.Progress[state] == 100
}

// Resolve returns the destination for applying trigger from current, or
// ErrInvalidTransition. It never mutates anything.
func (g *Graph) Resolve(current, trigger string) (string, error) {
	dest, ok := g.edges[current][trigger]
	if !ok {
		return "", invalidTransition(current, trigger)
	}
	return dest, nil
}

// ProgressFor returns the template's percentage for a state. Terminal states
// always resolve to 100.
func (g *Graph) ProgressFor(state string) int {
	if g.IsTerminal(state) {
		return 100
	}
	return g.template.Progress[state]
}

// TimeoutMinutes returns the advisory per-state timeout, zero when unset.
func (g *Graph) TimeoutMinutes(state string) int {
	return g.template.StateTimeouts[state]
}

// ValidActions lists the triggers legal from a state, sorted for stable
// output.
func (g *Graph) ValidActions(state string) []domain.TransitionRule {
	byTrigger := g.edges[state]
	actions := make([]domain.TransitionRule, 0, len(byTrigger))
	for trigger, dest := range byTrigger {
		actions = append(actions, domain.TransitionRule{Trigger: trigger, Sources: []string{state}, Dest: dest})
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Trigger < actions[j].Trigger })
	return actions
}

// DefaultTemplateName is the built-in pipeline used when a create request
// names no template.
const DefaultTemplateName = "default-hiring-pipeline"

// DefaultTemplate is the built-in hiring pipeline. It is strict: rejected,
// withdrawn and hired are dead ends. Reconsider-style cycles need a custom
// template with AllowReentry set.
func DefaultTemplate() *domain.PipelineTemplate {
	return &domain.PipelineTemplate{
		Name:        DefaultTemplateName,
		Version:     1,
		Description: "Built-in hiring pipeline from application to hire",
		States: []string{
			"applied", "screening", "phone_interview", "technical_interview",
			"final_interview", "reference_check", "offer_extended",
			"offer_accepted", "hired", "rejected", "withdrawn",
		},
		Rules: []domain.TransitionRule{
			{Trigger: "screen", Sources: []string{"applied"}, Dest: "screening"},
			{Trigger: "schedule_phone", Sources: []string{"screening"}, Dest: "phone_interview"},
			{Trigger: "pass_phone", Sources: []string{"phone_interview"}, Dest: "technical_interview"},
			{Trigger: "pass_technical", Sources: []string{"technical_interview"}, Dest: "final_interview"},
			{Trigger: "pass_final", Sources: []string{"final_interview"}, Dest: "reference_check"},
			{Trigger: "references_clear", Sources: []string{"reference_check"}, Dest: "offer_extended"},
			{Trigger: "accept_offer", Sources: []string{"offer_extended"}, Dest: "offer_accepted"},
			{Trigger: "onboard", Sources: []string{"offer_accepted"}, Dest: "hired"},
			{Trigger: "reject", Sources: []string{"screening", "phone_interview", "technical_interview", "final_interview", "reference_check"}, Dest: "rejected"},
			{Trigger: "decline_offer", Sources: []string{"offer_extended"}, Dest: "rejected"},
			{Trigger: "withdraw", Sources: []string{"applied", "screening", "phone_interview", "technical_interview", "final_interview"}, Dest: "withdrawn"},
		},
		Progress: map[string]int{
			"applied":             10,
			"screening":           20,
			"phone_interview":     35,
			"technical_interview": 50,
			"final_interview":     70,
			"reference_check":     85,
			"offer_extended":      95,
			"offer_accepted":      99,
			"hired":               100,
			"rejected":            100,
			"withdrawn":           100,
		},
		StateTimeouts: map[string]int{
			"applied":         7 * 24 * 60,
			"screening":       5 * 24 * 60,
			"phone_interview": 7 * 24 * 60,
			"offer_extended":  14 * 24 * 60,
		},
		Active: true,
	}
}
