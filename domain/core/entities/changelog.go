package entities

import "time"

// ChangeType names the kind of change a changelog entry records.
type ChangeType string

const (
	ChangeAddNode        ChangeType = "add node"
	ChangeDeleteNode     ChangeType = "delete node"
	ChangeModifyElements ChangeType = "modify elements"
	ChangeAddProperty    ChangeType = "add property"
	ChangeRemoveProperty ChangeType = "remove property"
	ChangeAddElement     ChangeType = "add element"
	ChangeRemoveElement  ChangeType = "remove element"
)

// ChangeLogEntry is the audit record of one committed change to a node.
type ChangeLogEntry struct {
	ID               string                 `json:"id"`
	NodeID           string                 `json:"nodeId"`
	ModifiedBy       string                 `json:"modifiedBy"`
	ModifiedProperty string                 `json:"modifiedProperty,omitempty"`
	PreviousValue    any                    `json:"previousValue"`
	NewValue         any                    `json:"newValue"`
	ModifiedAt       time.Time              `json:"modifiedAt"`
	ChangeType       ChangeType             `json:"changeType"`
	FullNode         *Node                  `json:"fullNode,omitempty"`
	Reasoning        string                 `json:"reasoning"`
	ChangeDetails    map[string]interface{} `json:"changeDetails,omitempty"`
}
