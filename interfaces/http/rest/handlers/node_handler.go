package handlers

import (
	"net/http"

	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	"kgraph/pkg/common"
	pkgerrors "kgraph/pkg/errors"
	"kgraph/pkg/utils"

	"go.uber.org/zap"
)

// Defaults applied to create requests
const (
	DefaultNodeType  = string(entities.TypeComment)
	DefaultNodeTitle = "Untitled"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	base
	commands GraphCommands
	queries  GraphQueries
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	commands GraphCommands,
	queries GraphQueries,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		base:     base{errors: errors, logger: logger},
		commands: commands,
		queries:  queries,
	}
}

// CreateNodeRequest represents the request body for creating a node.
// Absent fields take their defaults.
type CreateNodeRequest struct {
	Type    *string `json:"type,omitempty" validate:"omitempty,max=64"`
	Title   *string `json:"title,omitempty"`
	Content string  `json:"content,omitempty"`
	Tags    string  `json:"tags,omitempty"`
	Parent  *int64  `json:"parent,omitempty" validate:"omitempty,gte=0"`
}

// UpdateNodeRequest sets one attribute of a node
type UpdateNodeRequest struct {
	Attr  string  `json:"attr" validate:"required"`
	Value *string `json:"value" validate:"required"`
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	nodeType, title := DefaultNodeType, DefaultNodeTitle
	if req.Type != nil {
		nodeType = *req.Type
	}
	if req.Title != nil {
		title = *req.Title
	}
	parent := valueobjects.RootID
	if req.Parent != nil {
		parent = valueobjects.NodeID(*req.Parent)
	}

	id, err := h.commands.AddNode(r.Context(), nodeType, title, req.Content, req.Tags, parent)
	h.respondMutation(w, r, http.StatusCreated, &id, err)
}

// ListNodes handles GET /nodes
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	ids, err := h.queries.AllIDs(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"ids": ids})
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	node, err := h.queries.GetNode(r.Context(), id)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, node)
}

// UpdateNode handles PUT /nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req UpdateNodeRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	updated, err := h.commands.SetNodeAttr(r.Context(), id, req.Attr, *req.Value)
	h.respondMutation(w, r, http.StatusOK, &updated, err)
}

// DeleteNode handles DELETE /nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	err = h.commands.RemoveNode(r.Context(), id)
	h.respondMutation(w, r, http.StatusOK, nil, err)
}

// GetNeighbors handles GET /nodes/{nodeID}/neighbors
func (h *NodeHandler) GetNeighbors(w http.ResponseWriter, r *http.Request) {
	id, err := nodeIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	view, err := h.queries.Neighborhood(r.Context(), id)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}
