// Package handlers implements the request handlers for the querycat API.
package handlers

import (
	"github.com/ethpandaops/querycat/pkg/catalog"
	"github.com/ethpandaops/querycat/pkg/resolver"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// Server serves catalog metadata and resolves queries on request
type Server struct {
	store    *catalog.Store
	resolver *resolver.Resolver
	log      logrus.FieldLogger
}

// NewServer creates a new API server instance
func NewServer(store *catalog.Store, res *resolver.Resolver, log logrus.FieldLogger) *Server {
	return &Server{
		store:    store,
		resolver: res,
		log:      log.WithField("component", "api.handlers"),
	}
}

// Register mounts the handlers on router
func (s *Server) Register(router fiber.Router) {
	router.Get("/sources", s.ListSources)
	router.Get("/sources/:name", s.GetSource)
	router.Post("/sources/:name/resolve", s.ResolveSource)
}
