package handlers

import (
	"net/http"

	"kgraph/domain/core/valueobjects"
	"kgraph/pkg/common"
	pkgerrors "kgraph/pkg/errors"
	"kgraph/pkg/utils"

	"go.uber.org/zap"
)

// EdgeHandler handles link and unlink requests
type EdgeHandler struct {
	base
	commands GraphCommands
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(commands GraphCommands, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{
		base:     base{errors: errors, logger: logger},
		commands: commands,
	}
}

// EdgeRequest names a parent -> child edge. TwoWay also covers child -> parent.
type EdgeRequest struct {
	Parent *int64 `json:"parent" validate:"required,gte=0"`
	Child  *int64 `json:"child" validate:"required,gte=0"`
	TwoWay bool   `json:"two_way"`
}

func (h *EdgeHandler) decode(w http.ResponseWriter, r *http.Request) (*EdgeRequest, bool) {
	var req EdgeRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return nil, false
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return nil, false
	}
	return &req, true
}

// Link handles POST /edges
func (h *EdgeHandler) Link(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	err := h.commands.LinkNodes(r.Context(),
		valueobjects.NodeID(*req.Parent), valueobjects.NodeID(*req.Child), req.TwoWay)
	h.respondMutation(w, r, http.StatusOK, nil, err)
}

// Unlink handles DELETE /edges
func (h *EdgeHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	err := h.commands.UnlinkNodes(r.Context(),
		valueobjects.NodeID(*req.Parent), valueobjects.NodeID(*req.Child), req.TwoWay)
	h.respondMutation(w, r, http.StatusOK, nil, err)
}
