// Package snapshot decodes UI-tree snapshots and host event streams.
//
// Wire format, one JSON object per line:
//
//	{"kind":"CONTENT_CHANGED","package":"com.instagram.android",
//	 "tree":{"id":"...","desc":"...","children":[...]}}
package snapshot

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Node is a decoded UI element. It implements domain.UINode.
type Node struct {
	ID       string  `json:"id,omitempty"`
	Desc     string  `json:"desc,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Identifier implements domain.UINode.
func (n *Node) Identifier() (string, error) {
	if n == nil {
		return "", errNilNode
	}
	return n.ID, nil
}

// Description implements domain.UINode.
func (n *Node) Description() (string, error) {
	if n == nil {
		return "", errNilNode
	}
	return n.Desc, nil
}

// ChildCount implements domain.UINode.
func (n *Node) ChildCount() int {
	if n == nil {
		return 0
	}
	return len(n.Children)
}

// Child implements domain.UINode.
func (n *Node) Child(i int) (domain.UINode, error) {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil, fmt.Errorf("child %d out of range", i)
	}
	c := n.Children[i]
	if c == nil {
		return nil, fmt.Errorf("child %d: %w", i, errNilNode)
	}
	return c, nil
}

// Size returns the number of nodes in the subtree.
func (n *Node) Size() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Size()
	}
	return total
}

// DecodeTree reads a single JSON tree.
func DecodeTree(r io.Reader) (*Node, error) {
	var root Node
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return &root, nil
}
