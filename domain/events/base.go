package events

import (
	"sort"
	"time"
)

// DomainEvent is something that happened to a node after a committed mutation
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
	UserID      string    `json:"user_id"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Event type names.
const (
	TypeNodeCreated           = "node.created"
	TypeNodeUpdated           = "node.updated"
	TypeNodeDeleted           = "node.deleted"
	TypeNodePropertyAdded     = "node.property_added"
	TypeNodePropertiesUpdated = "node.properties_updated"
)

func newBase(eventType, nodeID, userID string, at time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: nodeID,
		EventType:   eventType,
		Timestamp:   at,
		Version:     1,
		UserID:      userID,
	}
}

// NodeCreated is raised when a new node is created
type NodeCreated struct {
	BaseEvent
	Title           string   `json:"title"`
	NodeType        string   `json:"node_type"`
	ParentID        string   `json:"parent_id,omitempty"`
	AffectedNodeIDs []string `json:"affected_node_ids"`
}

func NewNodeCreated(nodeID, userID, title, nodeType, parentID string, affected []string, at time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent:       newBase(TypeNodeCreated, nodeID, userID, at),
		Title:           title,
		NodeType:        nodeType,
		ParentID:        parentID,
		AffectedNodeIDs: sortedCopy(affected),
	}
}

// NodeUpdated is raised when a node's fields or relationships change
type NodeUpdated struct {
	BaseEvent
	ChangedFields   []string `json:"changed_fields"`
	AffectedNodeIDs []string `json:"affected_node_ids"`
	ParentChanged   bool     `json:"parent_changed"`
}

func NewNodeUpdated(nodeID, userID string, changed, affected []string, parentChanged bool, at time.Time) NodeUpdated {
	return NodeUpdated{
		BaseEvent:       newBase(TypeNodeUpdated, nodeID, userID, at),
		ChangedFields:   sortedCopy(changed),
		AffectedNodeIDs: sortedCopy(affected),
		ParentChanged:   parentChanged,
	}
}

// NodeDeleted is raised when a node is tombstoned
type NodeDeleted struct {
	BaseEvent
	AffectedNodeIDs []string `json:"affected_node_ids"`
}

func NewNodeDeleted(nodeID, userID string, affected []string, at time.Time) NodeDeleted {
	return NodeDeleted{
		BaseEvent:       newBase(TypeNodeDeleted, nodeID, userID, at),
		AffectedNodeIDs: sortedCopy(affected),
	}
}

// NodePropertyAdded is raised when a property is added to a node
type NodePropertyAdded struct {
	BaseEvent
	Property     string `json:"property"`
	PropertyType string `json:"property_type"`
}

func NewNodePropertyAdded(nodeID, userID, property, propertyType string, at time.Time) NodePropertyAdded {
	return NodePropertyAdded{
		BaseEvent:    newBase(TypeNodePropertyAdded, nodeID, userID, at),
		Property:     property,
		PropertyType: propertyType,
	}
}

// NodePropertiesUpdated is raised when property values, rules or types change
type NodePropertiesUpdated struct {
	BaseEvent
	Properties []string `json:"properties"`
	Deleted    []string `json:"deleted,omitempty"`
}

func NewNodePropertiesUpdated(nodeID, userID string, properties, deleted []string, at time.Time) NodePropertiesUpdated {
	return NodePropertiesUpdated{
		BaseEvent:  newBase(TypeNodePropertiesUpdated, nodeID, userID, at),
		Properties: sortedCopy(properties),
		Deleted:    sortedCopy(deleted),
	}
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
