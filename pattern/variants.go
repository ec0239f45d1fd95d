package pattern

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// nodeByID returns the run's node with the given id (a plain lookup in
// Run.Nodes, which is keyed by id).
func (r *Run) nodeByID(id string) *Node {
	return r.Nodes[id]
}

// edgesFrom returns every edge originating at id, in declaration order.
func (d Def) edgesFrom(id string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// edgesTo returns every edge terminating at id, in declaration order.
func (d Def) edgesTo(id string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// runSolo executes the single declared node against the raw task with no
// inbound context (spec §4.5 "solo"). Run dispatches here whenever a graph
// has exactly one agent-backed node, regardless of its declared type, so
// by the time this runs run.Def.Nodes is never empty.
func (e *Engine) runSolo(ctx context.Context, run *Run, nc NodeContext, task string) string {
	e.execNode(ctx, run, nc, run.Def.Nodes[0].ID, task, "")
	return ""
}

// runSequential chains nodes in declaration order, handing each node the
// compressed output of every prior node as context. A VETOED node halts
// the chain — downstream nodes are left PENDING (spec §4.5 "sequential",
// "Pattern success": PENDING nodes don't fail a run).
func (e *Engine) runSequential(ctx context.Context, run *Run, nc NodeContext, task string) string {
	var entries []Entry
	for _, n := range run.Def.Nodes {
		def, ok := e.Agents.Resolve(n.AgentID)
		name := n.AgentID
		if ok {
			name = def.Name
		}
		contextFrom := Compress(entries)
		output := e.execNode(ctx, run, nc, n.ID, task, contextFrom)
		entries = append(entries, Entry{AgentName: name, Output: output})

		if run.nodeByID(n.ID).Status == NodeVetoed {
			break
		}
	}
	return ""
}

// runParallel runs the dispatcher → workers → aggregator flow (spec §4.5
// "parallel"): the first node is the dispatcher and runs alone first;
// nodes it reaches by a `parallel` edge are workers and run concurrently
// against the dispatcher's output (not the original task); any remaining
// node is the aggregator and consolidates the workers' outputs. When no
// `parallel` edges are declared (e.g. a Def built positionally rather
// than authored with explicit edges), the last of the remaining nodes
// doubles as the aggregator whenever there are at least two of them.
func (e *Engine) runParallel(ctx context.Context, run *Run, nc NodeContext, task string) string {
	dispatcher := run.Def.Nodes[0]
	rest := run.Def.Nodes[1:]

	parallelTo := map[string]bool{}
	for _, edge := range run.Def.edgesFrom(dispatcher.ID) {
		if edge.Type == EdgeParallel {
			parallelTo[edge.To] = true
		}
	}

	var workers []Node
	aggregatorID := ""
	switch {
	case len(parallelTo) > 0:
		for _, n := range rest {
			if parallelTo[n.ID] {
				workers = append(workers, n)
			} else if aggregatorID == "" {
				aggregatorID = n.ID
			}
		}
	case len(rest) >= 2:
		aggregatorID = rest[len(rest)-1].ID
		workers = rest[:len(rest)-1]
	default:
		workers = rest
	}

	dispatch := e.execNode(ctx, run, nc, dispatcher.ID, task, "")

	g, gctx := errgroup.WithContext(ctx)
	outputs := make([]Entry, len(workers))
	for i, w := range workers {
		i, w := i, w
		g.Go(func() error {
			def, ok := e.Agents.Resolve(w.AgentID)
			name := w.AgentID
			if ok {
				name = def.Name
			}
			output := e.execNode(gctx, run, nc, w.ID, dispatch, "")
			outputs[i] = Entry{AgentName: name, Output: output}
			return nil
		})
	}
	_ = g.Wait()

	if aggregatorID != "" {
		e.execNode(ctx, run, nc, aggregatorID, task, Compress(outputs))
	}
	return ""
}

// runLoop alternates a producer (node 0) and a reviewer (node 1) for up to
// MaxIterations rounds, stopping early the first time the reviewer
// approves (spec §4.5 "loop").
func (e *Engine) runLoop(ctx context.Context, run *Run, nc NodeContext, task string) string {
	if len(run.Def.Nodes) < 2 {
		return "loop pattern requires a producer and a reviewer node"
	}
	producer, reviewer := run.Def.Nodes[0], run.Def.Nodes[1]

	feedback := ""
	for i := 0; i < run.Def.maxIterations(); i++ {
		output := e.execNode(ctx, run, nc, producer.ID, task, feedback)
		feedback = e.execNode(ctx, run, nc, reviewer.ID, "Review the following work:\n"+output, "")
		if run.nodeByID(reviewer.ID).Status != NodeVetoed {
			break
		}
	}
	return ""
}

// runHierarchical runs a manager/worker/QA structure (spec §4.5
// "hierarchical"): for up to MaxOuter outer iterations, the manager
// delegates to every worker (up to MaxInner inner rounds each), then a QA
// node validates; the outer loop stops the first time QA approves.
func (e *Engine) runHierarchical(ctx context.Context, run *Run, nc NodeContext, task string) string {
	var manager *Node
	var workers []*Node
	var qa *Node
	for i := range run.Def.Nodes {
		n := &run.Def.Nodes[i]
		def, ok := e.Agents.Resolve(n.AgentID)
		if !ok {
			continue
		}
		switch {
		case def.IsQA():
			qa = n
		case def.IsManager():
			manager = n
		case def.IsWorker():
			workers = append(workers, n)
		default:
			workers = append(workers, n)
		}
	}
	if manager == nil || len(workers) == 0 {
		return "hierarchical pattern requires a manager and at least one worker node"
	}

	var qaFeedback string
	for outer := 0; outer < run.Def.maxOuter(); outer++ {
		plan := e.execNode(ctx, run, nc, manager.ID, task, qaFeedback)

		var entries []Entry
		for inner := 0; inner < run.Def.maxInner(); inner++ {
			roundCtx := Compress(entries)
			entries = nil
			for _, w := range workers {
				def, _ := e.Agents.Resolve(w.AgentID)
				output := e.execNode(ctx, run, nc, w.ID, plan, roundCtx)
				entries = append(entries, Entry{AgentName: def.Name, Output: output})
			}
		}

		if qa == nil {
			break
		}
		summary := Compress(entries)
		e.execNode(ctx, run, nc, qa.ID, "Validate the team's work:\n"+summary, "")
		if run.nodeByID(qa.ID).Status != NodeVetoed {
			break
		}
		qaFeedback = run.nodeByID(qa.ID).Output
	}
	return ""
}

// runNetwork runs a debate: every node sees the compressed transcript of
// every earlier round and responds, for up to MaxRounds rounds (spec §4.5
// "network" / debate).
func (e *Engine) runNetwork(ctx context.Context, run *Run, nc NodeContext, task string) string {
	var transcript []Entry
	for round := 0; round < run.Def.maxRounds(); round++ {
		roundCtx := Compress(transcript)
		for _, n := range run.Def.Nodes {
			def, ok := e.Agents.Resolve(n.AgentID)
			name := n.AgentID
			if ok {
				name = def.Name
			}
			output := e.execNode(ctx, run, nc, n.ID, task, roundCtx)
			transcript = append(transcript, Entry{AgentName: name, Output: output})
		}
	}
	return ""
}

// runRouter executes the first node as a router, then dispatches to the
// first of its outgoing edges whose destination agent name is mentioned
// in the router's output, falling back to the first outgoing edge (spec
// §4.5 "router").
func (e *Engine) runRouter(ctx context.Context, run *Run, nc NodeContext, task string) string {
	router := run.Def.Nodes[0]
	decision := e.execNode(ctx, run, nc, router.ID, task, "")

	edges := run.Def.edgesFrom(router.ID)
	if len(edges) == 0 {
		return ""
	}

	target := edges[0].To
	for _, edge := range edges {
		def, ok := e.Agents.Resolve(run.nodeByID(edge.To).AgentID)
		if ok && containsFold(decision, def.Name) {
			target = edge.To
			break
		}
	}
	e.execNode(ctx, run, nc, target, task, decision)
	return ""
}

// runAggregator runs every node that has an outgoing edge in parallel,
// then feeds their compressed outputs into the target of the last such
// node's first edge (spec §4.5 "aggregator").
func (e *Engine) runAggregator(ctx context.Context, run *Run, nc NodeContext, task string) string {
	var sources []Node
	var aggregatorID string
	for _, n := range run.Def.Nodes {
		edges := run.Def.edgesFrom(n.ID)
		if len(edges) == 0 {
			continue
		}
		sources = append(sources, n)
		aggregatorID = edges[0].To
	}
	if aggregatorID == "" {
		return "aggregator pattern requires at least one edge into an aggregator node"
	}

	g, gctx := errgroup.WithContext(ctx)
	outputs := make([]Entry, len(sources))
	for i, n := range sources {
		i, n := i, n
		g.Go(func() error {
			def, ok := e.Agents.Resolve(n.AgentID)
			name := n.AgentID
			if ok {
				name = def.Name
			}
			output := e.execNode(gctx, run, nc, n.ID, task, "")
			outputs[i] = Entry{AgentName: name, Output: output}
			return nil
		})
	}
	_ = g.Wait()

	e.execNode(ctx, run, nc, aggregatorID, task, Compress(outputs))
	return ""
}

// runWave groups nodes into waves by their edges, whatever the edge type:
// nodes with no incoming edge form wave 0 (all nodes, if every node has
// one); each subsequent wave is the set of not-yet-placed nodes reached by
// an edge from the previous wave. Nodes within a wave run concurrently, and each
// wave sees the compressed output of the previous wave (spec §4.5
// "wave").
func (e *Engine) runWave(ctx context.Context, run *Run, nc NodeContext, task string) string {
	waves := waveOrder(run.Def)
	var prevEntries []Entry
	for _, wave := range waves {
		waveCtx := Compress(prevEntries)
		g, gctx := errgroup.WithContext(ctx)
		entries := make([]Entry, len(wave))
		for i, nodeID := range wave {
			i, nodeID := i, nodeID
			g.Go(func() error {
				n := run.nodeByID(nodeID)
				def, ok := e.Agents.Resolve(n.AgentID)
				name := n.AgentID
				if ok {
					name = def.Name
				}
				output := e.execNode(gctx, run, nc, nodeID, task, waveCtx)
				entries[i] = Entry{AgentName: name, Output: output}
				return nil
			})
		}
		_ = g.Wait()
		prevEntries = entries
	}
	return ""
}

// waveOrder computes the wave grouping described by runWave's doc comment.
func waveOrder(def Def) [][]string {
	hasIncoming := make(map[string]bool)
	for _, e := range def.Edges {
		hasIncoming[e.To] = true
	}

	var waves [][]string
	placed := make(map[string]bool)

	var first []string
	for _, n := range def.Nodes {
		if !hasIncoming[n.ID] {
			first = append(first, n.ID)
			placed[n.ID] = true
		}
	}
	if len(first) == 0 {
		for _, n := range def.Nodes {
			first = append(first, n.ID)
			placed[n.ID] = true
		}
	}
	waves = append(waves, first)

	for {
		prev := waves[len(waves)-1]
		seen := make(map[string]bool)
		var next []string
		for _, id := range prev {
			for _, e := range def.edgesFrom(id) {
				if !placed[e.To] && !seen[e.To] {
					next = append(next, e.To)
					seen[e.To] = true
				}
			}
		}
		if len(next) == 0 {
			break
		}
		for _, id := range next {
			placed[id] = true
		}
		waves = append(waves, next)
	}
	return waves
}

// runHumanInLoop executes every agent-backed node normally; a node with
// an empty AgentID is a human slot — it is left PENDING and a checkpoint
// event is emitted so a caller can surface an approval prompt and resume
// the run later (spec §4.5 "human-in-the-loop").
func (e *Engine) runHumanInLoop(ctx context.Context, run *Run, nc NodeContext, task string) string {
	contextFrom := ""
	var entries []Entry
	for _, n := range run.Def.Nodes {
		if n.AgentID == "" {
			emit(nc, "checkpoint", map[string]interface{}{"node_id": n.ID})
			continue
		}
		def, ok := e.Agents.Resolve(n.AgentID)
		name := n.AgentID
		if ok {
			name = def.Name
		}
		output := e.execNode(ctx, run, nc, n.ID, task, contextFrom)
		entries = append(entries, Entry{AgentName: name, Output: output})
		contextFrom = Compress(entries)
	}
	return ""
}
