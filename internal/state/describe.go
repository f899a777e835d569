package state

import (
	"fmt"
	"io"
	"strings"
)

// TransitionInfo is the serializable form of a Transition.
type TransitionInfo struct {
	From  State  `json:"from" yaml:"from"`
	Event string `json:"event" yaml:"event"`
	To    State  `json:"to" yaml:"to"`
}

// InputInfo is the fixed configuration of one registered input.
type InputInfo struct {
	Index     int  `json:"index" yaml:"index"`
	LowActive bool `json:"low_active" yaml:"low_active"`
}

// Description summarizes a machine configuration and position.
type Description struct {
	NumStates   int              `json:"num_states" yaml:"num_states"`
	Initial     State            `json:"initial" yaml:"initial"`
	Current     State            `json:"current" yaml:"current"`
	Inputs      int              `json:"inputs" yaml:"inputs"`
	InputLines  []InputInfo      `json:"input_lines" yaml:"input_lines"`
	HasTimer    bool             `json:"has_timer" yaml:"has_timer"`
	Running     bool             `json:"running" yaml:"running"`
	Tick        uint64           `json:"tick" yaml:"tick"`
	RunID       string           `json:"run_id" yaml:"run_id"`
	Transitions []TransitionInfo `json:"transitions" yaml:"transitions"`
}

// Describe returns the current configuration and position of m.
func (m *Machine) Describe() Description {
	transitions := m.table.Transitions()
	infos := make([]TransitionInfo, 0, len(transitions))
	for _, t := range transitions {
		infos = append(infos, TransitionInfo{From: t.From, Event: t.Event.String(), To: t.To})
	}

	lines := make([]InputInfo, 0, len(m.inputs))
	for _, in := range m.inputs {
		lines = append(lines, InputInfo{Index: in.Index(), LowActive: in.LowActive()})
	}

	return Description{
		NumStates:   m.numStates,
		Initial:     m.initial,
		Current:     m.CurrentState(),
		Inputs:      len(m.inputs),
		InputLines:  lines,
		HasTimer:    m.timer != nil,
		Running:     m.Running(),
		Tick:        m.Tick(),
		RunID:       m.runID,
		Transitions: infos,
	}
}

// WriteDOT renders d as a Graphviz digraph. The current state is filled.
func WriteDOT(w io.Writer, d Description) error {
	var b strings.Builder

	b.WriteString("digraph fsm {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=circle, fontsize=10];\n")
	b.WriteString("  edge [fontsize=9];\n")

	for s := 0; s < d.NumStates; s++ {
		attrs := fmt.Sprintf(`label="%d"`, s)
		if State(s) == d.Initial {
			attrs += ", shape=doublecircle"
		}
		if State(s) == d.Current {
			attrs += ", style=filled, fillcolor=lightgrey"
		}
		fmt.Fprintf(&b, "  s%d [%s];\n", s, attrs)
	}

	for _, t := range d.Transitions {
		fmt.Fprintf(&b, "  s%d -> s%d [label=%q];\n", t.From, t.To, t.Event)
	}

	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}
