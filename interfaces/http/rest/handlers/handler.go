// Package handlers implements the HTTP endpoints of the graph API.
package handlers

import (
	"context"
	"net/http"

	"kgraph/application/queries"
	"kgraph/application/services"
	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	"kgraph/pkg/common"
	pkgerrors "kgraph/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GraphCommands is the write side of the graph
type GraphCommands interface {
	AddNode(ctx context.Context, nodeType, title, content, tags string, parent valueobjects.NodeID) (valueobjects.NodeID, error)
	SetNodeAttr(ctx context.Context, id valueobjects.NodeID, attr, value string) (valueobjects.NodeID, error)
	RemoveNode(ctx context.Context, id valueobjects.NodeID) error
	LinkNodes(ctx context.Context, parent, child valueobjects.NodeID, twoWay bool) error
	UnlinkNodes(ctx context.Context, parent, child valueobjects.NodeID, twoWay bool) error
	Reindex(ctx context.Context) (services.ReindexResult, error)
}

// GraphQueries is the read side of the graph
type GraphQueries interface {
	GetNode(ctx context.Context, id valueobjects.NodeID) (*queries.NodeView, error)
	AllIDs(ctx context.Context) ([]valueobjects.NodeID, error)
	GraphProjection(ctx context.Context, ids []valueobjects.NodeID) (*queries.GraphView, error)
	Neighborhood(ctx context.Context, id valueobjects.NodeID) (*queries.GraphView, error)
	Search(ctx context.Context, text string, limit int) ([]entities.SearchHit, error)
}

// base carries what every handler needs to answer a request
type base struct {
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

func (b base) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := common.RespondJSON(w, status, data); err != nil {
		b.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondMutation answers a write. Non-fatal errors still count as success.
func (b base) respondMutation(w http.ResponseWriter, r *http.Request, status int, id *valueobjects.NodeID, err error) {
	if err != nil && !pkgerrors.IsNonFatal(err) {
		b.errors.Handle(w, r, err)
		return
	}
	if err != nil {
		b.logger.Warn("Request succeeded with warning",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	var raw *int64
	if id != nil {
		v := id.Int64()
		raw = &v
	}
	b.respondJSON(w, status, common.Mutation(raw, err))
}

// nodeIDParam parses the {nodeID} path parameter
func nodeIDParam(r *http.Request) (valueobjects.NodeID, error) {
	id, err := valueobjects.ParseNodeID(chi.URLParam(r, "nodeID"))
	if err != nil {
		return 0, pkgerrors.NewInvalidArgumentError(err.Error())
	}
	return id, nil
}
