package graph

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeType classifies graph nodes.
type NodeType string

const (
	// NodeTechnology is a technology or method.
	NodeTechnology NodeType = "technology"

	// NodeInstitution is a university, lab, or company.
	NodeInstitution NodeType = "institution"

	// NodeResearcher is an individual researcher.
	NodeResearcher NodeType = "researcher"

	// NodePaper is a publication.
	NodePaper NodeType = "paper"

	// NodeCase is an applied case.
	NodeCase NodeType = "case"

	// NodeCapsule is the mirror of a stored capsule. Mirror nodes use the
	// capsule's identifier as their node identifier.
	NodeCapsule NodeType = "capsule"
)

// IsValid returns true if the node type is valid.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTechnology, NodeInstitution, NodeResearcher, NodePaper, NodeCase, NodeCapsule:
		return true
	default:
		return false
	}
}

// String returns the string representation of the node type.
func (t NodeType) String() string {
	return string(t)
}

// ParseNodeType parses a string into a NodeType value.
// Returns an error if the string is not a valid node type.
func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid node type: %s", s)
	}
	return t, nil
}

// AllNodeTypes returns all valid node types.
func AllNodeTypes() []NodeType {
	return []NodeType{
		NodeTechnology,
		NodeInstitution,
		NodeResearcher,
		NodePaper,
		NodeCase,
		NodeCapsule,
	}
}

// Node is a vertex in the knowledge graph. Node identifiers are globally
// unique across types.
type Node struct {
	// ID is the unique node identifier.
	ID string `json:"id"`

	// Type classifies the node.
	Type NodeType `json:"type"`

	// Name is the display name.
	Name string `json:"name"`

	// Properties holds scalar or structured attributes.
	Properties map[string]any `json:"properties,omitempty"`
}

// NewNode creates a node with a generated identifier. Use the With* methods
// to chain configuration:
//
//	node := graph.NewNode(graph.NodeInstitution, "天津大学").
//		WithProperty("country", "CN")
func NewNode(typ NodeType, name string) *Node {
	return &Node{
		ID:         uuid.New().String(),
		Type:       typ,
		Name:       name,
		Properties: make(map[string]any),
	}
}

// WithID overrides the generated identifier. Mirror nodes use this to adopt
// their capsule's identifier.
func (n *Node) WithID(id string) *Node {
	n.ID = id
	return n
}

// WithProperty sets a single property.
func (n *Node) WithProperty(key string, value any) *Node {
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	n.Properties[key] = value
	return n
}

// WithProperties merges the given properties.
func (n *Node) WithProperties(props map[string]any) *Node {
	for k, v := range props {
		n.WithProperty(k, v)
	}
	return n
}

// Validate checks the node's required fields.
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if n.Name == "" {
		return fmt.Errorf("node name is required")
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("unknown node type: %q", n.Type)
	}
	return nil
}

// Clone returns a copy of the node with its own properties map.
func (n *Node) Clone() *Node {
	out := *n
	if n.Properties != nil {
		out.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			out.Properties[k] = v
		}
	}
	return &out
}
