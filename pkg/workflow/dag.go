package workflow

import "fmt"

// ErrCircularDependency is returned by Sort when the graph contains a
// cycle; its message is relied upon by callers matching "circular".
var ErrCircularDependency = fmt.Errorf("circular dependency detected in workflow")

// BuildDAG produces an adjacency map node-id -> predecessor node-ids from
// nodeIDs (in first-appearance order) and edges. Every node is present as
// a key even with no incoming edges. Edges naming an unknown endpoint are
// ignored; duplicate predecessor entries are de-duplicated.
func BuildDAG(nodeIDs []string, edges [][2]string) map[string][]string {
	known := make(map[string]bool, len(nodeIDs))
	dag := make(map[string][]string, len(nodeIDs))
	for _, id := range nodeIDs {
		known[id] = true
		dag[id] = nil
	}

	for _, e := range edges {
		source, target := e[0], e[1]
		if source == "" || target == "" || !known[source] || !known[target] {
			continue
		}
		if !contains(dag[target], source) {
			dag[target] = append(dag[target], source)
		}
	}
	return dag
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// Sort runs Kahn's algorithm over dag, using nodeIDs' order to break ties
// among simultaneously-ready nodes (first-appearance-in-nodes order, per
// the ready queue being FIFO-seeded in that order). Returns
// ErrCircularDependency if any node is never reached.
func Sort(dag map[string][]string, nodeIDs []string) ([]string, error) {
	inDegree := make(map[string]int, len(dag))
	for id, preds := range dag {
		inDegree[id] = len(preds)
	}

	// dependents[p] = nodes that list p as a predecessor, built by walking
	// nodeIDs in order so that nodes which become ready simultaneously are
	// appended to the ready queue in first-appearance order, not map
	// iteration order.
	dependents := make(map[string][]string, len(dag))
	for _, id := range nodeIDs {
		for _, p := range dag[id] {
			dependents[p] = append(dependents[p], id)
		}
	}

	var queue []string
	for _, id := range nodeIDs {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]string, 0, len(dag))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(dag) {
		return nil, ErrCircularDependency
	}
	return result, nil
}
