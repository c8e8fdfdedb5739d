package pacv3

import (
	"slices"
	"strings"

	"github.com/EchoTools/pacFileTools/pkg/blob"
)

// trieNode is one node of a radix tree over entry names. Data lives on
// unnamed leaves hung under the node whose path spells the full key, so a
// key may be a prefix of another.
type trieNode struct {
	name     string
	children []*trieNode
	leaf     bool
	value    int // index of the key for leaves
}

func newTrie() *trieNode { return &trieNode{} }

func commonPrefix(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// insert adds key with value. Keys must be unique; the empty key hangs its
// leaf directly on the root.
func (t *trieNode) insert(key string, value int) error {
	node := t
	rest := key
	for rest != "" {
		var next *trieNode
		for _, c := range node.children {
			if c.leaf {
				continue
			}
			cp := commonPrefix(c.name, rest)
			if cp == 0 {
				continue
			}
			if cp < len(c.name) {
				split := &trieNode{name: c.name[:cp], children: []*trieNode{c}}
				c.name = c.name[cp:]
				for i, sib := range node.children {
					if sib == c {
						node.children[i] = split
					}
				}
				c = split
			}
			next = c
			rest = rest[cp:]
			break
		}
		if next == nil {
			next = &trieNode{name: rest}
			node.children = append(node.children, next)
			rest = ""
		}
		node = next
	}
	for _, c := range node.children {
		if c.leaf {
			return blob.Invalidf("duplicate key %q", key)
		}
	}
	node.children = append(node.children, &trieNode{leaf: true, value: value})
	return nil
}

// flatNode is a trie node laid out in preorder.
type flatNode struct {
	name      string
	parent    int
	children  []int
	leaf      bool
	value     int
	dataIndex int
	pathLen   int
}

// flatten lays the trie out depth-first, children in name order with the
// data leaf first. Leaves are numbered in visiting order.
func (t *trieNode) flatten() ([]flatNode, []int, error) {
	var (
		nodes []flatNode
		data  []int
	)
	var visit func(n *trieNode, parent, pathLen int) (int, error)
	visit = func(n *trieNode, parent, pathLen int) (int, error) {
		pathLen += len(n.name)
		if pathLen > 0xFF {
			return 0, blob.Invalidf("name longer than 255 bytes under %q", n.name)
		}
		idx := len(nodes)
		nodes = append(nodes, flatNode{
			name:      n.name,
			parent:    parent,
			leaf:      n.leaf,
			value:     n.value,
			dataIndex: -1,
			pathLen:   pathLen,
		})
		if n.leaf {
			nodes[idx].dataIndex = len(data)
			data = append(data, idx)
		}
		kids := slices.Clone(n.children)
		slices.SortFunc(kids, func(a, b *trieNode) int {
			if a.leaf != b.leaf {
				if a.leaf {
					return -1
				}
				return 1
			}
			return strings.Compare(a.name, b.name)
		})
		for _, k := range kids {
			child, err := visit(k, idx, pathLen)
			if err != nil {
				return 0, err
			}
			nodes[idx].children = append(nodes[idx].children, child)
		}
		return idx, nil
	}
	if _, err := visit(t, -1, 0); err != nil {
		return nil, nil, err
	}
	return nodes, data, nil
}
