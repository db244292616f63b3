// Package matcher classifies UI-element trees.
// It decides whether the restricted viewer is on screen using identifier
// fragments, with description-based exceptions for navigation elements.
package matcher

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

// DefaultMaxDepth bounds the walk. Host trees observed for the monitored app
// stay well under 64 levels with a fan-out below 50.
const DefaultMaxDepth = 256

// Outcome is the per-node classification result.
type Outcome int

const (
	// NoMatchRecurse: this node is not the viewer, keep scanning its children.
	NoMatchRecurse Outcome = iota
	// Match: this node belongs to the restricted viewer.
	Match
	// NoMatchStop: this node is not the viewer and its subtree is skipped.
	NoMatchStop
)

func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case NoMatchStop:
		return "no-match-stop"
	default:
		return "no-match-recurse"
	}
}

// TreeReadError reports a node whose attributes or children could not be read.
type TreeReadError struct {
	Depth int
	Op    string
	Err   error
}

func (e *TreeReadError) Error() string {
	return fmt.Sprintf("read %s at depth %d: %v", e.Op, e.Depth, e.Err)
}

func (e *TreeReadError) Unwrap() error {
	return e.Err
}

// Result is the detailed outcome of one scan.
type Result struct {
	Matched    bool
	Identifier string // Identifier of the matching node
	Visited    int
	Ignored    int
	ReadErrors []error
}

// ContentMatcher walks a tree and reports whether the restricted viewer is present.
// It holds no per-scan state and is safe for concurrent use.
type ContentMatcher struct {
	viewerIDs     []string
	ignorePhrases []string
	maxDepth      int
	logger        *zap.Logger
}

// New creates a matcher for the given rule set.
func New(rules domain.RuleSet, logger *zap.Logger) *ContentMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxDepth := rules.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &ContentMatcher{
		viewerIDs:     normalize(rules.ViewerIdentifiers),
		ignorePhrases: normalize(rules.IgnorePhrases),
		maxDepth:      maxDepth,
		logger:        logger,
	}
}

// normalize lower-cases entries and drops empty ones; an empty fragment would
// match every node.
func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Rules returns the normalized rule set in use.
func (m *ContentMatcher) Rules() domain.RuleSet {
	return domain.RuleSet{
		ViewerIdentifiers: append([]string(nil), m.viewerIDs...),
		IgnorePhrases:     append([]string(nil), m.ignorePhrases...),
		MaxDepth:          m.maxDepth,
	}
}

// Classify reports whether the restricted viewer is on screen.
func (m *ContentMatcher) Classify(root domain.UINode) bool {
	return m.Scan(root).Matched
}

type frame struct {
	node  domain.UINode
	depth int
}

// Scan walks the tree depth-first in pre-order and stops at the first match.
func (m *ContentMatcher) Scan(root domain.UINode) Result {
	var res Result
	if root == nil {
		return res
	}

	stack := []frame{{node: root, depth: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res.Visited++

		outcome, id, ignored, err := m.evaluate(f.node, f.depth)
		if err != nil {
			res.ReadErrors = append(res.ReadErrors, err)
		}
		if ignored {
			res.Ignored++
		}

		switch outcome {
		case Match:
			m.logger.Debug("found restricted viewer", zap.String("identifier", id), zap.Int("depth", f.depth))
			res.Matched = true
			res.Identifier = id
			return res
		case NoMatchStop:
			continue
		}

		// Push in reverse so children pop in document order.
		children := m.children(f.node, f.depth, &res)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: children[i], depth: f.depth + 1})
		}
	}
	return res
}

// evaluate classifies a single node. Attribute read failures (errors or
// panics from the host) count as "no match" and the walk continues. A node
// at the depth limit is still checked, but never recursed into.
func (m *ContentMatcher) evaluate(node domain.UINode, depth int) (outcome Outcome, id string, ignored bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = NoMatchRecurse
			err = &TreeReadError{Depth: depth, Op: "node", Err: fmt.Errorf("panic: %v", r)}
		}
		if outcome == NoMatchRecurse && depth >= m.maxDepth {
			outcome = NoMatchStop
		}
	}()

	if node == nil {
		return NoMatchStop, "", false, nil
	}

	desc, derr := node.Description()
	if derr != nil {
		return NoMatchRecurse, "", false, &TreeReadError{Depth: depth, Op: "description", Err: derr}
	}
	desc = strings.ToLower(desc)
	for _, phrase := range m.ignorePhrases {
		if strings.Contains(desc, phrase) {
			m.logger.Debug("ignoring navigation element", zap.String("description", desc))
			return NoMatchRecurse, "", true, nil
		}
	}

	raw, ierr := node.Identifier()
	if ierr != nil {
		return NoMatchRecurse, "", false, &TreeReadError{Depth: depth, Op: "identifier", Err: ierr}
	}
	id = strings.ToLower(raw)
	for _, viewer := range m.viewerIDs {
		if strings.Contains(id, viewer) {
			return Match, raw, false, nil
		}
	}
	return NoMatchRecurse, "", false, nil
}

// children collects readable children; unreadable ones are recorded and skipped.
func (m *ContentMatcher) children(node domain.UINode, depth int, res *Result) (out []domain.UINode) {
	defer func() {
		if r := recover(); r != nil {
			res.ReadErrors = append(res.ReadErrors,
				&TreeReadError{Depth: depth, Op: "children", Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	n := node.ChildCount()
	out = make([]domain.UINode, 0, n)
	for i := 0; i < n; i++ {
		child, err := node.Child(i)
		if err != nil {
			res.ReadErrors = append(res.ReadErrors,
				&TreeReadError{Depth: depth + 1, Op: fmt.Sprintf("child %d", i), Err: err})
			continue
		}
		if child == nil {
			continue
		}
		out = append(out, child)
	}
	return out
}
