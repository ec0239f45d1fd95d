package pattern

import (
	"strconv"

	"github.com/conductorhq/conductor/config"
)

// FromConfig converts a fully-specified config.PatternConfig (explicit
// nodes and edges, as authored in a patterns.yaml) into a Def.
func FromConfig(c config.PatternConfig) Def {
	nodes := make([]Node, len(c.Agents))
	for i, a := range c.Agents {
		nodes[i] = Node{ID: a.NodeID, AgentID: a.AgentID}
	}
	edges := make([]Edge, len(c.Edges))
	for i, e := range c.Edges {
		edges[i] = Edge{From: e.From, To: e.To, Type: EdgeType(e.Type)}
	}
	return Def{
		Type:          Type(c.Type),
		Nodes:         nodes,
		Edges:         edges,
		MaxIterations: c.Config.MaxIterations,
		MaxRounds:     c.Config.MaxRounds,
	}
}

// BuildPatternDef constructs a Def on the fly from a pattern type and an
// ordered agent_ids list (spec §4.6: "build PatternDef from
// wf_phase.config.agent_ids with edge layout from pattern type"). Node
// ids are "n0", "n1", ... in agentIDs order; edges are derived
// structurally from the variant so the mission orchestrator never has to
// know a variant's topology.
func BuildPatternDef(patternType Type, agentIDs []string, maxIterations int) Def {
	nodes := make([]Node, len(agentIDs))
	ids := make([]string, len(agentIDs))
	for i, agentID := range agentIDs {
		id := nodeID(i)
		ids[i] = id
		nodes[i] = Node{ID: id, AgentID: agentID}
	}

	var edges []Edge
	switch patternType {
	case TypeSequential, TypeWave:
		for i := 0; i+1 < len(ids); i++ {
			edges = append(edges, Edge{From: ids[i], To: ids[i+1], Type: EdgeSequential})
		}
	case TypeHierarchical:
		if len(ids) >= 2 {
			manager := ids[0]
			workers := ids[1:]
			if len(workers) > 1 {
				qa := workers[len(workers)-1]
				workers = workers[:len(workers)-1]
				for _, w := range workers {
					edges = append(edges, Edge{From: manager, To: w, Type: EdgeSequential})
					edges = append(edges, Edge{From: w, To: qa, Type: EdgeAggregate})
				}
			} else {
				edges = append(edges, Edge{From: manager, To: workers[0], Type: EdgeSequential})
			}
		}
	case TypeRouter:
		if len(ids) >= 1 {
			router := ids[0]
			for _, to := range ids[1:] {
				edges = append(edges, Edge{From: router, To: to, Type: EdgeSequential})
			}
		}
	case TypeAggregator:
		if len(ids) >= 2 {
			aggregator := ids[len(ids)-1]
			for _, from := range ids[:len(ids)-1] {
				edges = append(edges, Edge{From: from, To: aggregator, Type: EdgeAggregate})
			}
		}
	case TypeParallel:
		if len(ids) >= 2 {
			dispatcher := ids[0]
			workers := ids[1:]
			aggregator := ""
			if len(workers) >= 2 {
				aggregator = workers[len(workers)-1]
				workers = workers[:len(workers)-1]
			}
			for _, w := range workers {
				edges = append(edges, Edge{From: dispatcher, To: w, Type: EdgeParallel})
				if aggregator != "" {
					edges = append(edges, Edge{From: w, To: aggregator, Type: EdgeAggregate})
				}
			}
		}
	}

	return Def{Type: patternType, Nodes: nodes, Edges: edges, MaxIterations: maxIterations}
}

func nodeID(i int) string {
	return "n" + strconv.Itoa(i)
}
