package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"getmyguide/internal/app/commands"
	guidesapp "getmyguide/internal/app/handlers/guides"
	"getmyguide/internal/app/queries"
)

type GuideHTTP interface {
	Get(c *gin.Context)
	Upsert(c *gin.Context)
}

type GuideHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type upsertGuideRequest struct {
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	ServiceLocations []string `json:"service_locations"`
	Languages        []string `json:"languages"`
}

func (h GuideHandler) Get(c *gin.Context) {
	query := guidesapp.GetGuideQuery{GuideID: c.Param("id")}
	result, err := queries.Ask[guidesapp.GetGuideQuery, *guidesapp.Profile](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h GuideHandler) Upsert(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req upsertGuideRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := guidesapp.UpsertGuideCommand{
		Actor:            p.Actor,
		GuideID:          c.Param("id"),
		Name:             req.Name,
		Email:            req.Email,
		ServiceLocations: req.ServiceLocations,
		Languages:        req.Languages,
	}
	result, err := commands.Dispatch[guidesapp.UpsertGuideCommand, *guidesapp.Profile](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ GuideHTTP = GuideHandler{}
