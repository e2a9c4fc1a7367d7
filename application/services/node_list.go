package services

import (
	"context"

	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	"ontology/infrastructure/persistence/abstractions"
	pkgerrors "ontology/pkg/errors"
)

// ListNodesRequest filters and pages the live nodes.
type ListNodesRequest struct {
	NodeType valueobjects.NodeType
	Root     string
	Limit    int
	Offset   int
}

// ListMetadata describes the page returned by ListNodes.
type ListMetadata struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// NodeList is one page of nodes.
type NodeList struct {
	Nodes    []*entities.Node `json:"nodes"`
	Metadata ListMetadata     `json:"_metadata"`
}

// ListNodes returns the non-deleted nodes ordered by id.
func (s *NodeService) ListNodes(ctx context.Context, req ListNodesRequest) (*NodeList, error) {
	if req.Offset < 0 {
		return nil, pkgerrors.NewValidationError("offset must not be negative")
	}
	if req.NodeType != "" {
		if err := validateNodeType(req.NodeType); err != nil {
			return nil, err
		}
	}
	limit := s.config.ClampListLimit(req.Limit)

	criteria := abstractions.Where("deleted", false)
	if req.NodeType != "" {
		criteria = criteria.And("nodeType", abstractions.OpEqual, string(req.NodeType))
	}
	if req.Root != "" {
		criteria = criteria.And("root", abstractions.OpEqual, req.Root)
	}

	var list *NodeList
	err := s.observe(ctx, "ListNodes", func(ctx context.Context) error {
		nodes, err := s.store.Query(ctx, criteria.OrderBy("id", abstractions.SortAscending).Page(req.Offset, limit))
		if err != nil {
			return err
		}
		total, err := s.store.Count(ctx, criteria.WithoutPaging())
		if err != nil {
			return err
		}
		if nodes == nil {
			nodes = []*entities.Node{}
		}
		list = &NodeList{
			Nodes: nodes,
			Metadata: ListMetadata{
				Total:   total,
				Offset:  req.Offset,
				Limit:   limit,
				HasMore: req.Offset+len(nodes) < total,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}
