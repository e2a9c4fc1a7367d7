package valueobjects

import (
	"fmt"

	pkgerrors "ontology/pkg/errors"
)

// NodeType classifies an ontology node.
type NodeType string

const (
	NodeTypeActivity            NodeType = "activity"
	NodeTypeActor               NodeType = "actor"
	NodeTypeEvaluationDimension NodeType = "evaluationDimension"
	NodeTypeRole                NodeType = "role"
	NodeTypeIncentive           NodeType = "incentive"
	NodeTypeReward              NodeType = "reward"
	NodeTypeGroup               NodeType = "group"
	NodeTypeContext             NodeType = "context"
)

// NodeTypes lists every known node type.
var NodeTypes = []NodeType{
	NodeTypeActivity,
	NodeTypeActor,
	NodeTypeEvaluationDimension,
	NodeTypeRole,
	NodeTypeIncentive,
	NodeTypeReward,
	NodeTypeGroup,
	NodeTypeContext,
}

// IsValid reports whether t is a known node type.
func (t NodeType) IsValid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseNodeType validates a node type coming from a request.
func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(s)
	if !t.IsValid() {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown node type %q", s)).
			WithCode("INVALID_NODE_TYPE")
	}
	return t, nil
}
