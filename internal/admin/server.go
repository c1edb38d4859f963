package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/config"
	"github.com/vyrodovalexey/filtergw/internal/filter"
	"github.com/vyrodovalexey/filtergw/internal/observability"
	"github.com/vyrodovalexey/filtergw/internal/route"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

// RouteValidator checks a route before it is saved.
type RouteValidator func(r *route.Route) error

// FilterLister reports the filters of a chain in order.
type FilterLister interface {
	Filters() []filter.Filter
}

// FilterInfo describes one filter in the chain.
type FilterInfo struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string   `json:"error"`
	ID      string   `json:"id,omitempty"`
	Details []string `json:"details,omitempty"`
}

// Server serves the admin API.
type Server struct {
	routes   route.Repository
	filters  FilterLister
	validate RouteValidator
	logger   observability.Logger
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithFilterLister exposes the chain on GET /filters.
func WithFilterLister(l FilterLister) Option {
	return func(s *Server) {
		s.filters = l
	}
}

// WithRouteValidator checks routes before they are saved.
func WithRouteValidator(v RouteValidator) Option {
	return func(s *Server) {
		s.validate = v
	}
}

// NewServer creates the admin API over routes.
func NewServer(routes route.Repository, opts ...Option) *Server {
	s := &Server{
		routes: routes,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.registerRoutes(s.engine)

	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Engine returns the gin engine so callers can mount extra endpoints.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes(r gin.IRoutes) {
	r.GET("/routes", s.listRoutes)
	r.GET("/routes/:id", s.getRoute)
	r.POST("/routes", s.saveRoute)
	r.PUT("/routes/:id", s.saveRoute)
	r.DELETE("/routes/:id", s.deleteRoute)
	r.GET("/filters", s.listFilters)
}

func (s *Server) listRoutes(c *gin.Context) {
	out := make([]route.Route, 0)
	for r := range s.routes.Routes(c.Request.Context()) {
		out = append(out, r)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getRoute(c *gin.Context) {
	id := c.Param("id")
	r, ok := s.routes.Get(c.Request.Context(), id)
	if !ok {
		s.fail(c, route.NewNotFoundError(id))
		return
	}
	c.JSON(http.StatusOK, r)
}

// saveRoute decodes the body and hands the store a future that settles once
// validation has run.
func (s *Server) saveRoute(c *gin.Context) {
	ctx := c.Request.Context()

	var r route.Route
	if err := c.ShouldBindJSON(&r); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", util.ErrInvalidInput, err))
		return
	}
	if pathID := c.Param("id"); pathID != "" {
		if r.ID != "" && r.ID != pathID {
			s.fail(c, fmt.Errorf("%w: body id %q does not match path id %q", util.ErrInvalidInput, r.ID, pathID))
			return
		}
		r.ID = pathID
	}

	validated := async.Go(ctx, func(context.Context) (route.Route, error) {
		if s.validate != nil {
			if err := s.validate(&r); err != nil {
				return route.Route{}, fmt.Errorf("%w: %w", util.ErrInvalidInput, err)
			}
		}
		return r, nil
	})

	if err := s.routes.SaveFrom(ctx, validated).Err(); err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("route saved",
		observability.String("route", r.ID),
		observability.String("uri", r.URI),
	)
	c.JSON(http.StatusOK, r)
}

func (s *Server) deleteRoute(c *gin.Context) {
	id := c.Param("id")
	if err := s.routes.Delete(c.Request.Context(), id).Err(); err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("route deleted", observability.String("route", id))
	c.Status(http.StatusNoContent)
}

func (s *Server) listFilters(c *gin.Context) {
	out := make([]FilterInfo, 0)
	if s.filters != nil {
		for _, f := range s.filters.Filters() {
			out = append(out, FilterInfo{Name: filter.NameOf(f), Order: filter.OrderOf(f)})
		}
	}
	c.JSON(http.StatusOK, out)
}

// fail writes err with the status it maps to.
func (s *Server) fail(c *gin.Context, err error) {
	var notFound *route.NotFoundError
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: notFound.Error(), ID: notFound.ID})
	case errors.Is(err, util.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid route", Details: details(err)})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(filter.StatusOf(err), errorResponse{Error: err.Error()})
	default:
		s.logger.Error("admin request failed", observability.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
	}
}

// details flattens validation errors into messages.
func details(err error) []string {
	var verrs config.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]string, 0, len(verrs))
		for i := range verrs {
			out = append(out, verrs[i].Error())
		}
		return out
	}
	return []string{err.Error()}
}
