package manager

// Graph tracks pairwise divergence between named models: a symmetric partial
// map from unordered name pairs to values, layered over the set of node
// names. It is mutated only by the manager's own loop and needs no locking.
type Graph struct {
	partners map[string]map[string]struct{}
	values   map[[2]string]float64
}

func NewGraph() *Graph {
	return &Graph{
		partners: make(map[string]map[string]struct{}),
		values:   make(map[[2]string]float64),
	}
}

// pair orders two names so that an edge has one canonical key.
func pair(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (g *Graph) AddNode(name string) {
	if _, ok := g.partners[name]; !ok {
		g.partners[name] = make(map[string]struct{})
	}
}

func (g *Graph) HasNode(name string) bool {
	_, ok := g.partners[name]
	return ok
}

// RemoveNode drops a name and every edge touching it.
func (g *Graph) RemoveNode(name string) {
	for partner := range g.partners[name] {
		delete(g.partners[partner], name)
		delete(g.values, pair(name, partner))
	}
	delete(g.partners, name)
}

// SetEdge creates or refreshes the edge between two registered names.
func (g *Graph) SetEdge(a, b string, value float64) {
	if !g.HasNode(a) || !g.HasNode(b) {
		return
	}
	g.partners[a][b] = struct{}{}
	g.partners[b][a] = struct{}{}
	g.values[pair(a, b)] = value
}

func (g *Graph) RemoveEdge(a, b string) {
	if _, ok := g.values[pair(a, b)]; !ok {
		return
	}
	delete(g.partners[a], b)
	delete(g.partners[b], a)
	delete(g.values, pair(a, b))
}

func (g *Graph) Edge(a, b string) (float64, bool) {
	v, ok := g.values[pair(a, b)]
	return v, ok
}

// EdgesOf returns partner→value for every edge incident to name.
func (g *Graph) EdgesOf(name string) map[string]float64 {
	out := make(map[string]float64, len(g.partners[name]))
	for partner := range g.partners[name] {
		out[partner] = g.values[pair(name, partner)]
	}
	return out
}

// Edges calls fn for every edge in the graph.
func (g *Graph) Edges(fn func(a, b string, value float64)) {
	for k, v := range g.values {
		fn(k[0], k[1], v)
	}
}

func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.partners))
	for name := range g.partners {
		out = append(out, name)
	}
	return out
}
