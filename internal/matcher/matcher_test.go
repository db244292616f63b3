package matcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

// fakeNode is a test double for domain.UINode with injectable failures.
type fakeNode struct {
	id       string
	desc     string
	children []domain.UINode
	idErr    error
	descErr  error
	childErr map[int]error
	panicOn  string
	visits   *int
}

func (n *fakeNode) Identifier() (string, error) {
	if n.panicOn == "identifier" {
		panic("node recycled")
	}
	return n.id, n.idErr
}

func (n *fakeNode) Description() (string, error) {
	if n.visits != nil {
		*n.visits++
	}
	return n.desc, n.descErr
}

func (n *fakeNode) ChildCount() int {
	if n.panicOn == "children" {
		panic("stale window")
	}
	return len(n.children)
}

func (n *fakeNode) Child(i int) (domain.UINode, error) {
	if err := n.childErr[i]; err != nil {
		return nil, err
	}
	return n.children[i], nil
}

func node(id, desc string, children ...domain.UINode) *fakeNode {
	return &fakeNode{id: id, desc: desc, children: children}
}

func testRules() domain.RuleSet {
	return domain.RuleSet{
		ViewerIdentifiers: []string{
			"clips_viewer_view_pager",
			"clips_viewer_root",
			"reel_viewer_page",
			"reels_viewer_fragment_container",
			"clips_viewer_fragment",
			"reel_feed_item",
		},
		IgnorePhrases: []string{"bandeja de reels", "reels tab", "reels button", "ir a reels"},
	}
}

func newTestMatcher() *ContentMatcher {
	return New(testRules(), zap.NewNop())
}

func TestContentMatcher_Classify(t *testing.T) {
	tests := []struct {
		name string
		root domain.UINode
		want bool
	}{
		{
			name: "nil root",
			root: nil,
			want: false,
		},
		{
			name: "ignored root still scans children",
			root: node("", "reels tab", node("com.instagram.android:id/clips_viewer_root", "")),
			want: true,
		},
		{
			name: "ignored root without viewer descendant",
			root: node("", "reels tab"),
			want: false,
		},
		{
			name: "identifier match is case-insensitive",
			root: node("CLIPS_VIEWER_VIEW_PAGER", ""),
			want: true,
		},
		{
			name: "ignore phrase is case-insensitive",
			root: node("reel_feed_item", "Ir a Reels"),
			want: false,
		},
		{
			name: "ignored node with its own viewer identifier does not match",
			root: node("clips_viewer_root", "Bandeja de reels"),
			want: false,
		},
		{
			name: "empty attributes continue the walk",
			root: node("", "", node("", "", node("", "", node("reel_viewer_page", "")))),
			want: true,
		},
		{
			name: "home feed is not the viewer",
			root: node("action_bar_root", "",
				node("feed_tab", "Home"),
				node("clips_tab", "Reels button"),
				node("row_feed_photo", "Photo by someone")),
			want: false,
		},
		{
			name: "viewer in later sibling subtree",
			root: node("root", "",
				node("tab_bar", "", node("", "Reels tab")),
				node("content", "", node("x:id/reels_viewer_fragment_container", ""))),
			want: true,
		},
	}

	m := newTestMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Classify(tt.root))
		})
	}
}

func TestContentMatcher_IdempotentOnSameTree(t *testing.T) {
	m := newTestMatcher()
	root := node("root", "", node("", "reels tab", node("clips_viewer_fragment", "")))

	first := m.Classify(root)
	second := m.Classify(root)
	assert.True(t, first)
	assert.Equal(t, first, second)
}

func TestContentMatcher_CountsIgnoredNodes(t *testing.T) {
	root := node("root", "",
		node("clips_tab", "Reels tab"),
		node("reels_button", "Reels button", node("row_feed_photo", "")))

	res := newTestMatcher().Scan(root)
	assert.False(t, res.Matched)
	assert.Equal(t, 2, res.Ignored)
	assert.Equal(t, 4, res.Visited, "children of ignored nodes are still visited")
}

func TestContentMatcher_ShortCircuitsOnFirstMatch(t *testing.T) {
	visits := 0
	late := &fakeNode{id: "late", visits: &visits}
	root := node("root", "", node("clips_viewer_root", ""), late)

	res := newTestMatcher().Scan(root)
	assert.True(t, res.Matched)
	assert.Equal(t, "clips_viewer_root", res.Identifier)
	assert.Zero(t, visits, "siblings after the match are not visited")
}

func TestContentMatcher_PreOrderDocumentOrder(t *testing.T) {
	root := node("root", "",
		node("a", "", node("reel_feed_item_first", "")),
		node("reel_feed_item_second", ""))

	res := newTestMatcher().Scan(root)
	require.True(t, res.Matched)
	assert.Equal(t, "reel_feed_item_first", res.Identifier)
}

func TestContentMatcher_ReadErrorsAreRecovered(t *testing.T) {
	readErr := errors.New("node unavailable")

	tests := []struct {
		name       string
		root       domain.UINode
		want       bool
		wantErrors int
	}{
		{
			name:       "description error on root still scans children",
			root:       &fakeNode{descErr: readErr, children: []domain.UINode{node("clips_viewer_root", "")}},
			want:       true,
			wantErrors: 1,
		},
		{
			name: "identifier error is a non-match for that node only",
			root: node("root", "",
				&fakeNode{id: "clips_viewer_root", idErr: readErr},
				node("reel_viewer_page", "")),
			want:       true,
			wantErrors: 1,
		},
		{
			name: "unreadable child is skipped",
			root: &fakeNode{
				children: []domain.UINode{nil, node("reel_viewer_page", "")},
				childErr: map[int]error{0: readErr},
			},
			want:       true,
			wantErrors: 1,
		},
		{
			name: "panic reading identifier is recovered",
			root: node("root", "",
				&fakeNode{panicOn: "identifier"},
				node("clips_viewer_root", "")),
			want:       true,
			wantErrors: 1,
		},
		{
			name: "panic enumerating children is recovered",
			root: node("root", "",
				&fakeNode{panicOn: "children"},
				node("clips_viewer_root", "")),
			want:       true,
			wantErrors: 1,
		},
		{
			name:       "all reads fail",
			root:       &fakeNode{descErr: readErr},
			want:       false,
			wantErrors: 1,
		},
	}

	m := newTestMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res Result
			require.NotPanics(t, func() { res = m.Scan(tt.root) })
			assert.Equal(t, tt.want, res.Matched)
			assert.Len(t, res.ReadErrors, tt.wantErrors)

			var treeErr *TreeReadError
			assert.True(t, errors.As(res.ReadErrors[0], &treeErr))
		})
	}
}

func TestContentMatcher_DeepTreeTerminates(t *testing.T) {
	// Build a chain far deeper than any recursion-friendly limit.
	var leaf domain.UINode = node("clips_viewer_root", "")
	for i := 0; i < 10000; i++ {
		leaf = node("", "", leaf)
	}

	shallow := New(testRules(), zap.NewNop())
	assert.False(t, shallow.Classify(leaf), "viewer below the depth limit is not reached")

	deep := New(domain.RuleSet{
		ViewerIdentifiers: testRules().ViewerIdentifiers,
		MaxDepth:          20000,
	}, zap.NewNop())
	assert.True(t, deep.Classify(leaf))
}

func TestContentMatcher_EvaluateOutcome(t *testing.T) {
	m := New(domain.RuleSet{
		ViewerIdentifiers: testRules().ViewerIdentifiers,
		IgnorePhrases:     testRules().IgnorePhrases,
		MaxDepth:          3,
	}, zap.NewNop())

	tests := []struct {
		name  string
		node  domain.UINode
		depth int
		want  Outcome
	}{
		{"viewer", node("clips_viewer_root", ""), 0, Match},
		{"viewer at depth limit", node("clips_viewer_root", ""), 3, Match},
		{"plain node", node("row_feed", ""), 1, NoMatchRecurse},
		{"plain node at depth limit", node("row_feed", ""), 3, NoMatchStop},
		{"ignored node", node("", "Reels tab"), 2, NoMatchRecurse},
		{"ignored node at depth limit", node("", "Reels tab"), 3, NoMatchStop},
		{"nil node", nil, 0, NoMatchStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, _, _, _ := m.evaluate(tt.node, tt.depth)
			assert.Equal(t, tt.want, outcome)
		})
	}
}

func TestContentMatcher_DepthLimitInclusive(t *testing.T) {
	m := New(domain.RuleSet{ViewerIdentifiers: testRules().ViewerIdentifiers, MaxDepth: 2}, zap.NewNop())

	atLimit := node("", "", node("", "", node("clips_viewer_root", "")))
	assert.True(t, m.Classify(atLimit), "node at the limit is still checked")

	below := node("", "", node("", "", node("", "", node("clips_viewer_root", ""))))
	res := m.Scan(below)
	assert.False(t, res.Matched)
	assert.Equal(t, 3, res.Visited, "children of the limit node are not visited")
}

func TestNew_NormalizesRules(t *testing.T) {
	m := New(domain.RuleSet{
		ViewerIdentifiers: []string{"  Clips_Viewer_Root ", ""},
		IgnorePhrases:     []string{"", "REELS TAB"},
	}, nil)

	rules := m.Rules()
	assert.Equal(t, []string{"clips_viewer_root"}, rules.ViewerIdentifiers)
	assert.Equal(t, []string{"reels tab"}, rules.IgnorePhrases)
	assert.Equal(t, DefaultMaxDepth, rules.MaxDepth)

	// An empty ignore phrase must not ignore everything.
	assert.True(t, m.Classify(node("clips_viewer_root", "anything")))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "match", Match.String())
	assert.Equal(t, "no-match-recurse", NoMatchRecurse.String())
	assert.Equal(t, "no-match-stop", NoMatchStop.String())
}
