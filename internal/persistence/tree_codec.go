package persistence

import (
	"fmt"

	"tabforest/internal/models"
)

// NodeJSON is the file shape of a tree node: a leaf carries only Category,
// a split carries Column, Value, Left and Right.
type NodeJSON struct {
	Category *int      `json:"category,omitempty"`
	Column   *int      `json:"column,omitempty"`
	Value    *float64  `json:"value,omitempty"`
	Left     *NodeJSON `json:"left,omitempty"`
	Right    *NodeJSON `json:"right,omitempty"`
}

type TreeJSON struct {
	Root *NodeJSON `json:"root"`
	Gain float64   `json:"gain"`
}

func encodeNode(node models.Node) (*NodeJSON, error) {
	switch n := node.(type) {
	case *models.Leaf:
		class := n.Class
		return &NodeJSON{Category: &class}, nil
	case *models.Split:
		left, err := encodeNode(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := encodeNode(n.Right)
		if err != nil {
			return nil, err
		}
		column, value := n.Feature, n.Threshold
		return &NodeJSON{Column: &column, Value: &value, Left: left, Right: right}, nil
	}
	return nil, fmt.Errorf("cannot encode node of type %T", node)
}

// decodeNode rebuilds a node, checking every split column against the
// feature count so a loaded tree cannot index past the sample.
func decodeNode(j *NodeJSON, numFeatures int) (models.Node, error) {
	if j == nil {
		return nil, fmt.Errorf("missing node")
	}

	if j.Category != nil {
		if j.Column != nil || j.Left != nil || j.Right != nil {
			return nil, fmt.Errorf("node has both a category and split fields")
		}
		return &models.Leaf{Class: *j.Category}, nil
	}

	if j.Column == nil || j.Value == nil {
		return nil, fmt.Errorf("split node needs column and value")
	}
	if *j.Column < 0 || *j.Column >= numFeatures {
		return nil, fmt.Errorf("split column %d outside %d features", *j.Column, numFeatures)
	}

	left, err := decodeNode(j.Left, numFeatures)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := decodeNode(j.Right, numFeatures)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	return &models.Split{
		Feature:   *j.Column,
		Threshold: *j.Value,
		Left:      left,
		Right:     right,
	}, nil
}
