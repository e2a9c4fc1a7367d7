package dynamodb

import (
	"fmt"
	"strings"
	"time"

	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
)

const (
	nodeKeyPrefix  = "NODE#"
	nodeSortKey    = "METADATA"
	nodesIndexPK   = "NODES"
	nodeEntityType = "NODE"
)

// nodeItem represents the DynamoDB item structure for a node document
type nodeItem struct {
	PK         string `json:"PK"`
	SK         string `json:"SK"`
	GSI1PK     string `json:"GSI1PK"`
	GSI1SK     string `json:"GSI1SK"`
	EntityType string `json:"EntityType"`
	Version    int64  `json:"version"`

	ID                     string                              `json:"id"`
	Title                  string                              `json:"title"`
	NodeType               string                              `json:"nodeType"`
	Deleted                bool                                `json:"deleted"`
	Root                   string                              `json:"root"`
	Properties             map[string]interface{}              `json:"properties"`
	Inheritance            map[string]inheritanceItem          `json:"inheritance"`
	PropertyType           map[string]string                   `json:"propertyType"`
	TextValue              map[string]string                   `json:"textValue"`
	Generalizations        valueobjects.Collections            `json:"generalizations"`
	Specializations        valueobjects.Collections            `json:"specializations"`
	Contributors           []string                            `json:"contributors"`
	ContributorsByProperty map[string][]string                 `json:"contributorsByProperty"`
	CreatedBy              string                              `json:"createdBy"`
	Locked                 bool                                `json:"locked"`
	PropertyOf             map[string]valueobjects.Collections `json:"propertyOf"`
	CreatedAt              string                              `json:"createdAt"`
	UpdatedAt              string                              `json:"updatedAt"`
}

type inheritanceItem struct {
	Ref             *string `json:"ref"`
	InheritanceType string  `json:"inheritanceType"`
}

func nodeKey(id string) string {
	return nodeKeyPrefix + id
}

func toInheritanceItem(inh entities.Inheritance) inheritanceItem {
	return inheritanceItem{Ref: inh.Ref, InheritanceType: inh.InheritanceType.String()}
}

func fromInheritanceItem(item inheritanceItem) (entities.Inheritance, error) {
	t, err := valueobjects.ParseInheritanceType(item.InheritanceType)
	if err != nil {
		return entities.Inheritance{}, err
	}
	return entities.Inheritance{Ref: item.Ref, InheritanceType: t}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toNodeItem(n *entities.Node, version int64) nodeItem {
	c := n.Clone()
	item := nodeItem{
		PK:                     nodeKey(c.ID),
		SK:                     nodeSortKey,
		GSI1PK:                 nodesIndexPK,
		GSI1SK:                 c.ID,
		EntityType:             nodeEntityType,
		Version:                version,
		ID:                     c.ID,
		Title:                  c.Title,
		NodeType:               string(c.NodeType),
		Deleted:                c.Deleted,
		Root:                   c.Root,
		Properties:             make(map[string]interface{}, len(c.Properties)),
		Inheritance:            make(map[string]inheritanceItem, len(c.Inheritance)),
		PropertyType:           c.PropertyType,
		TextValue:              c.TextValue,
		Generalizations:        c.Generalizations,
		Specializations:        c.Specializations,
		Contributors:           c.Contributors,
		ContributorsByProperty: c.ContributorsByProperty,
		CreatedBy:              c.CreatedBy,
		Locked:                 c.Locked,
		PropertyOf:             c.PropertyOf,
		CreatedAt:              formatTime(c.CreatedAt),
		UpdatedAt:              formatTime(c.UpdatedAt),
	}
	for k, v := range c.Properties {
		item.Properties[k] = v.Interface()
	}
	for k, v := range c.Inheritance {
		item.Inheritance[k] = toInheritanceItem(v)
	}
	if item.TextValue == nil {
		item.TextValue = map[string]string{}
	}
	if item.PropertyOf == nil {
		item.PropertyOf = map[string]valueobjects.Collections{}
	}
	return item
}

func (item nodeItem) toNode() (*entities.Node, error) {
	n := &entities.Node{
		ID:                     item.ID,
		Title:                  item.Title,
		NodeType:               valueobjects.NodeType(item.NodeType),
		Deleted:                item.Deleted,
		Root:                   item.Root,
		Properties:             make(map[string]valueobjects.PropertyValue, len(item.Properties)),
		Inheritance:            make(map[string]entities.Inheritance, len(item.Inheritance)),
		PropertyType:           item.PropertyType,
		Generalizations:        item.Generalizations,
		Specializations:        item.Specializations,
		Contributors:           item.Contributors,
		ContributorsByProperty: item.ContributorsByProperty,
		CreatedBy:              item.CreatedBy,
		Locked:                 item.Locked,
		CreatedAt:              parseTime(item.CreatedAt),
		UpdatedAt:              parseTime(item.UpdatedAt),
	}
	if len(item.TextValue) > 0 {
		n.TextValue = item.TextValue
	}
	if len(item.PropertyOf) > 0 {
		n.PropertyOf = item.PropertyOf
	}
	for k, v := range item.Properties {
		n.Properties[k] = valueobjects.FromAny(v)
	}
	for k, v := range item.Inheritance {
		inh, err := fromInheritanceItem(v)
		if err != nil {
			return nil, fmt.Errorf("node %s inheritance %q: %w", item.ID, k, err)
		}
		n.Inheritance[k] = inh
	}
	if n.ID == "" {
		n.ID = strings.TrimPrefix(item.PK, nodeKeyPrefix)
	}
	n.EnsureDefaults()
	return n, nil
}

// storageValue converts a patch value to the form it takes inside a node item.
func storageValue(v interface{}) interface{} {
	switch t := v.(type) {
	case valueobjects.PropertyValue:
		return t.Interface()
	case entities.Inheritance:
		return toInheritanceItem(t)
	case valueobjects.NodeType:
		return string(t)
	case time.Time:
		return formatTime(t)
	default:
		return v
	}
}
