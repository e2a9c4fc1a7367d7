// Package handlers exposes NodeService over HTTP.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ontology/application/services"
	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	"ontology/interfaces/http/rest/middleware"
	"ontology/pkg/common"
	pkgerrors "ontology/pkg/errors"
	"ontology/pkg/utils"
)

// NodeService is the part of services.NodeService the handlers call
type NodeService interface {
	GetNode(ctx context.Context, id string) (*entities.Node, error)
	ListNodes(ctx context.Context, req services.ListNodesRequest) (*services.NodeList, error)
	CreateNode(ctx context.Context, req services.CreateNodeRequest, user string) (*entities.Node, error)
	UpdateNode(ctx context.Context, id string, upd services.NodeUpdate, user, reasoning string) (*entities.Node, error)
	DeleteNode(ctx context.Context, id, user, reasoning string) (*services.DeleteResult, error)
	AddNodeProperty(ctx context.Context, req services.AddPropertyRequest, user string) (*entities.Node, error)
	UpdateNodeProperties(ctx context.Context, req services.UpdatePropertiesRequest, user string) (*services.UpdatePropertiesResult, error)
	GetNodeChangeLogs(ctx context.Context, nodeID string, limit, offset int) ([]*entities.ChangeLogEntry, error)
}

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	service NodeService
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(service NodeService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{
		service: service,
		errors:  errorHandler,
		logger:  logger,
	}
}

// Recover reports panics in node routes as internal errors
func (h *NodeHandler) Recover(next http.Handler) http.Handler {
	return h.errors.Middleware(next)
}

// RouteNotFound answers requests for unknown routes
func (h *NodeHandler) RouteNotFound(w http.ResponseWriter, r *http.Request) {
	h.errors.HandleStatus(w, r, http.StatusNotFound, "Route not found")
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Title           string                                  `json:"title" validate:"required,max=500"`
	NodeType        string                                  `json:"nodeType" validate:"required"`
	Root            string                                  `json:"root,omitempty"`
	Properties      map[string]valueobjects.PropertyValue   `json:"properties,omitempty"`
	PropertyType    map[string]string                       `json:"propertyType,omitempty"`
	Inheritance     map[string]valueobjects.InheritanceType `json:"inheritance,omitempty"`
	TextValue       map[string]string                       `json:"textValue,omitempty"`
	Generalizations valueobjects.Collections                `json:"generalizations,omitempty"`
	Specializations valueobjects.Collections                `json:"specializations,omitempty"`
	Reasoning       string                                  `json:"reasoning,omitempty"`
}

// UpdateNodeRequest represents the request body for updating a node. Absent fields
// are left unchanged.
type UpdateNodeRequest struct {
	Title           *string                               `json:"title,omitempty" validate:"omitempty,max=500"`
	NodeType        *string                               `json:"nodeType,omitempty"`
	Root            *string                               `json:"root,omitempty"`
	Generalizations valueobjects.Collections              `json:"generalizations,omitempty"`
	Specializations valueobjects.Collections              `json:"specializations,omitempty"`
	Properties      map[string]valueobjects.PropertyValue `json:"properties,omitempty"`
	PropertyType    map[string]string                     `json:"propertyType,omitempty"`
	Reasoning       string                                `json:"reasoning,omitempty"`
}

// DeleteNodeRequest represents the optional request body for deleting a node
type DeleteNodeRequest struct {
	Reasoning string `json:"reasoning,omitempty"`
}

// AddPropertyRequest represents the request body for adding a property
type AddPropertyRequest struct {
	Name            string                        `json:"name" validate:"required,max=200"`
	Value           valueobjects.PropertyValue    `json:"value"`
	InheritanceType *valueobjects.InheritanceType `json:"inheritanceType,omitempty"`
	PropertyType    *string                       `json:"propertyType,omitempty"`
	Reasoning       string                        `json:"reasoning,omitempty"`
}

// UpdatePropertiesRequest represents the request body for a batch property update
type UpdatePropertiesRequest struct {
	Values           map[string]valueobjects.PropertyValue   `json:"values,omitempty"`
	InheritanceRules map[string]valueobjects.InheritanceType `json:"inheritanceRules,omitempty"`
	Deletions        []string                                `json:"deletions,omitempty"`
	PropertyTypes    map[string]string                       `json:"propertyTypes,omitempty"`
	Reasoning        string                                  `json:"reasoning,omitempty"`
}

// PropertiesResponse is the property view of a node
type PropertiesResponse struct {
	ID           string                                `json:"id"`
	Properties   map[string]valueobjects.PropertyValue `json:"properties"`
	Inheritance  map[string]entities.Inheritance       `json:"inheritance"`
	PropertyType map[string]string                     `json:"propertyType"`
}

// ListNodes handles GET /nodes
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	page, err := common.ExtractPaginationParams(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	req := services.ListNodesRequest{
		Root:   r.URL.Query().Get("root"),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	if nodeType := r.URL.Query().Get("nodeType"); nodeType != "" {
		req.NodeType = valueobjects.NodeType(nodeType)
	}

	list, err := h.service.ListNodes(r.Context(), req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	body, err := common.WithMetadata(list.Nodes, list.Metadata)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(list.Metadata.Total))
	common.RespondJSON(w, http.StatusOK, body)
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	nodeType, err := valueobjects.ParseNodeType(req.NodeType)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	node, err := h.service.CreateNode(r.Context(), services.CreateNodeRequest{
		Node: services.NodeInput{
			Title:           req.Title,
			NodeType:        nodeType,
			Root:            req.Root,
			Properties:      req.Properties,
			PropertyType:    req.PropertyType,
			Inheritance:     req.Inheritance,
			TextValue:       req.TextValue,
			Generalizations: req.Generalizations,
			Specializations: req.Specializations,
		},
		Reasoning: req.Reasoning,
	}, middleware.UserID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v2/nodes/"+node.ID)
	common.RespondJSON(w, http.StatusCreated, node)
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.service.GetNode(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, node)
}

// UpdateNode handles PUT /nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req UpdateNodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	upd := services.NodeUpdate{
		Title:           req.Title,
		Root:            req.Root,
		Generalizations: req.Generalizations,
		Specializations: req.Specializations,
		Properties:      req.Properties,
		PropertyType:    req.PropertyType,
	}
	if req.NodeType != nil {
		nodeType, err := valueobjects.ParseNodeType(*req.NodeType)
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
		upd.NodeType = &nodeType
	}
	if upd.IsEmpty() {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("No fields to update"))
		return
	}

	node, err := h.service.UpdateNode(r.Context(), chi.URLParam(r, "nodeID"), upd, middleware.UserID(r), req.Reasoning)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	var req DeleteNodeRequest
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}
	if req.Reasoning == "" {
		req.Reasoning = r.URL.Query().Get("reasoning")
	}

	result, err := h.service.DeleteNode(r.Context(), chi.URLParam(r, "nodeID"), middleware.UserID(r), req.Reasoning)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// GetProperties handles GET /nodes/{nodeID}/properties
func (h *NodeHandler) GetProperties(w http.ResponseWriter, r *http.Request) {
	node, err := h.service.GetNode(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, PropertiesResponse{
		ID:           node.ID,
		Properties:   node.Properties,
		Inheritance:  node.Inheritance,
		PropertyType: node.PropertyType,
	})
}

// AddProperty handles POST /nodes/{nodeID}/properties
func (h *NodeHandler) AddProperty(w http.ResponseWriter, r *http.Request) {
	var req AddPropertyRequest
	if !h.decode(w, r, &req) {
		return
	}

	node, err := h.service.AddNodeProperty(r.Context(), services.AddPropertyRequest{
		NodeID:          chi.URLParam(r, "nodeID"),
		Name:            req.Name,
		Value:           req.Value,
		Reasoning:       req.Reasoning,
		InheritanceType: req.InheritanceType,
		PropertyType:    req.PropertyType,
	}, middleware.UserID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, node)
}

// UpdateProperties handles PATCH /nodes/{nodeID}/properties
func (h *NodeHandler) UpdateProperties(w http.ResponseWriter, r *http.Request) {
	var req UpdatePropertiesRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.UpdateNodeProperties(r.Context(), services.UpdatePropertiesRequest{
		NodeID:           chi.URLParam(r, "nodeID"),
		Values:           req.Values,
		Reasoning:        req.Reasoning,
		InheritanceRules: req.InheritanceRules,
		Deletions:        req.Deletions,
		PropertyTypes:    req.PropertyTypes,
	}, middleware.UserID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// GetChangelog handles GET /nodes/{nodeID}/changelog
func (h *NodeHandler) GetChangelog(w http.ResponseWriter, r *http.Request) {
	page, err := common.ExtractPaginationParams(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	entries, err := h.service.GetNodeChangeLogs(r.Context(), chi.URLParam(r, "nodeID"), page.Limit, page.Offset)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, entries)
}

// decode parses and validates a JSON body, writing the error response on failure.
func (h *NodeHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(w, r, v); err != nil {
		h.errors.Handle(w, r, err)
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		h.errors.Handle(w, r, err)
		return false
	}
	return true
}
