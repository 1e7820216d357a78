package handlers

import (
	"encoding/json"
	"strings"

	"github.com/ethpandaops/querycat/pkg/resolver"
	"github.com/gofiber/fiber/v3"
)

// SourceSummary is the list view of a source
type SourceSummary struct {
	Name        string   `json:"name"`
	Catalog     string   `json:"catalog"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters"`
}

// SourceDetail is the full view of a source
type SourceDetail struct {
	Name         string                 `json:"name"`
	Catalog      string                 `json:"catalog"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Template     string                 `json:"template"`
	Placeholders []string               `json:"placeholders"`
	Parameters   []resolver.Parameter   `json:"parameters"`
}

// ResolveRequest is the body of a resolve call
type ResolveRequest struct {
	Parameters map[string]interface{} `json:"parameters"`
}

// ResolveResponse carries the resolved query
type ResolveResponse struct {
	Source  string `json:"source"`
	Dialect string `json:"dialect"`
	Query   string `json:"query"`
}

// ListSources handles GET /api/v1/sources
func (s *Server) ListSources(c fiber.Ctx) error {
	search := strings.ToLower(c.Query("search"))
	catalogName := c.Query("catalog")

	summaries := make([]SourceSummary, 0)
	for _, entry := range s.store.Sources() {
		if catalogName != "" && entry.Catalog.Name != catalogName {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(entry.Source.Name), search) {
			continue
		}

		plan, err := resolver.Plan(entry.Catalog, entry.Source.Name)
		if err != nil {
			return resolutionError(err)
		}

		names := make([]string, 0, len(plan))
		for _, p := range plan {
			names = append(names, p.Name)
		}

		summaries = append(summaries, SourceSummary{
			Name:        entry.Source.Name,
			Catalog:     entry.Catalog.Name,
			Description: entry.Source.Description,
			Parameters:  names,
		})
	}

	response := map[string]interface{}{
		"sources": summaries,
		"total":   len(summaries),
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetSource handles GET /api/v1/sources/:name
func (s *Server) GetSource(c fiber.Ctx) error {
	entry, err := s.store.Lookup(c.Params("name"))
	if err != nil {
		return ErrSourceNotFound
	}

	plan, err := resolver.Plan(entry.Catalog, entry.Source.Name)
	if err != nil {
		return resolutionError(err)
	}

	return c.Status(fiber.StatusOK).JSON(SourceDetail{
		Name:         entry.Source.Name,
		Catalog:      entry.Catalog.Name,
		Description:  entry.Source.Description,
		Metadata:     entry.Source.Metadata,
		Template:     entry.Source.Template,
		Placeholders: resolver.Placeholders(entry.Source.Template),
		Parameters:   plan,
	})
}

// ResolveSource handles POST /api/v1/sources/:name/resolve
func (s *Server) ResolveSource(c fiber.Ctx) error {
	name := c.Params("name")

	var req ResolveRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return ErrInvalidBody
		}
	}

	// An unknown source leaves cat nil; Resolve reports and counts it
	cat, _ := s.store.Catalog(name)

	query, err := s.resolver.Resolve(cat, name, req.Parameters)
	if err != nil {
		s.log.WithError(err).WithField("source", name).Debug("Resolution failed")
		return resolutionError(err)
	}

	return c.Status(fiber.StatusOK).JSON(ResolveResponse{
		Source:  name,
		Dialect: s.resolver.Dialect(),
		Query:   query,
	})
}
