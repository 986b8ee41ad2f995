package diff

import "github.com/leapstack-labs/columnci/pkg/sqltree"

// innerMatchThreshold is the minimum dice coefficient of matched
// descendants for two inner nodes to be considered the same node.
const innerMatchThreshold = 0.5

// Trees computes the edit script that transforms source into target.
// Unchanged nodes produce no edits; added and removed subtrees produce
// one Insert or Remove per node.
func Trees(source, target *sqltree.Node) []Edit {
	m := newMatcher(source, target)
	m.matchIdenticalSubtrees()
	m.matchByDescendants()
	m.matchBySiblingPosition()
	return m.script()
}

type matcher struct {
	source *sqltree.Node
	target *sqltree.Node

	srcNodes []*sqltree.Node // preorder
	tgtNodes []*sqltree.Node // preorder

	srcToTgt map[*sqltree.Node]*sqltree.Node
	tgtToSrc map[*sqltree.Node]*sqltree.Node
}

func newMatcher(source, target *sqltree.Node) *matcher {
	return &matcher{
		source:   source,
		target:   target,
		srcNodes: source.Nodes(),
		tgtNodes: target.Nodes(),
		srcToTgt: make(map[*sqltree.Node]*sqltree.Node),
		tgtToSrc: make(map[*sqltree.Node]*sqltree.Node),
	}
}

func (m *matcher) matched(s *sqltree.Node) bool {
	_, ok := m.srcToTgt[s]
	return ok
}

func (m *matcher) matchedTarget(t *sqltree.Node) bool {
	_, ok := m.tgtToSrc[t]
	return ok
}

// matchPair records a single node correspondence.
func (m *matcher) matchPair(s, t *sqltree.Node) {
	m.srcToTgt[s] = t
	m.tgtToSrc[t] = s
}

// matchSubtrees records correspondences for two structurally identical
// subtrees, node by node in preorder.
func (m *matcher) matchSubtrees(s, t *sqltree.Node) {
	sn := s.Nodes()
	tn := t.Nodes()
	for i := range sn {
		m.matchPair(sn[i], tn[i])
	}
}

// matchIdenticalSubtrees is the top-down pass: source subtrees are
// matched to target subtrees with an identical canonical rendering.
// Preorder traversal lets larger subtrees claim their match first.
func (m *matcher) matchIdenticalSubtrees() {
	byRender := make(map[string][]*sqltree.Node)
	for _, t := range m.tgtNodes {
		r := t.String()
		byRender[r] = append(byRender[r], t)
	}

	for _, s := range m.srcNodes {
		if m.matched(s) {
			continue
		}
		candidates := byRender[s.String()]
		for _, t := range candidates {
			if m.matchedTarget(t) {
				continue
			}
			m.matchSubtrees(s, t)
			break
		}
	}
}

// matchByDescendants is the bottom-up pass: an unmatched source inner
// node is matched to the unmatched target node of the same kind whose
// descendants overlap most with its own matched descendants.
func (m *matcher) matchByDescendants() {
	// postorder: visit children before parents
	for i := len(m.srcNodes) - 1; i >= 0; i-- {
		s := m.srcNodes[i]
		if m.matched(s) || len(s.Children()) == 0 {
			continue
		}

		var best *sqltree.Node
		bestScore := 0.0
		for _, t := range m.tgtNodes {
			if m.matchedTarget(t) || t.Kind != s.Kind {
				continue
			}
			score := m.descendantOverlap(s, t)
			if score > bestScore {
				best, bestScore = t, score
			}
		}
		if best != nil && bestScore >= innerMatchThreshold {
			m.matchPair(s, best)
		}
	}
}

// descendantOverlap returns the dice coefficient of matched descendant
// pairs between s and t.
func (m *matcher) descendantOverlap(s, t *sqltree.Node) float64 {
	sDesc := s.Nodes()[1:]
	tDesc := t.Nodes()[1:]
	if len(sDesc) == 0 || len(tDesc) == 0 {
		return 0
	}

	inTarget := make(map[*sqltree.Node]bool, len(tDesc))
	for _, td := range tDesc {
		inTarget[td] = true
	}

	common := 0
	for _, sd := range sDesc {
		if td, ok := m.srcToTgt[sd]; ok && inTarget[td] {
			common++
		}
	}
	return 2 * float64(common) / float64(len(sDesc)+len(tDesc))
}

// matchBySiblingPosition is the final pass: an unmatched source node
// whose parent is matched pairs with the first unmatched same-kind child
// of the corresponding target parent. This catches label-only changes on
// leaves, e.g. a renamed column reference.
func (m *matcher) matchBySiblingPosition() {
	for _, s := range m.srcNodes {
		if m.matched(s) || s.Parent() == nil {
			continue
		}
		tParent, ok := m.srcToTgt[s.Parent()]
		if !ok {
			continue
		}
		for _, t := range tParent.Children() {
			if m.matchedTarget(t) || t.Kind != s.Kind {
				continue
			}
			m.matchPair(s, t)
			break
		}
	}
}

// script derives the edit script from the matching.
func (m *matcher) script() []Edit {
	var edits []Edit

	for _, s := range m.srcNodes {
		t, ok := m.srcToTgt[s]
		if !ok {
			edits = append(edits, &Remove{Node: s})
			continue
		}
		if !s.SameLabel(t) {
			edits = append(edits, &Update{Source: s, Target: t})
			continue
		}
		if s.Parent() != nil && t.Parent() != nil && m.srcToTgt[s.Parent()] != t.Parent() {
			edits = append(edits, &Move{Source: s, Target: t})
		}
	}

	for _, t := range m.tgtNodes {
		if !m.matchedTarget(t) {
			edits = append(edits, &Insert{Node: t})
		}
	}
	return edits
}
