// internal/server/server.go
package server

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"menu-catalog-api/internal/apperr"
	"menu-catalog-api/internal/extract"
	"menu-catalog-api/internal/generation"
	"menu-catalog-api/internal/service"
	"menu-catalog-api/internal/storage"
	"menu-catalog-api/internal/validate"
)

type Config struct {
	// Production hides error chains and panic stacks from responses.
	Production bool
}

type Server struct {
	svc    *service.Service
	config Config
	router *gin.Engine
}

var tagNamesOnce sync.Once

func New(svc *service.Service, cfg Config) *Server {
	tagNamesOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			validate.RegisterTagNames(v)
		}
	})
	s := &Server{svc: svc, config: cfg}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggingMiddleware(), CORSMiddleware(), s.recovery())

	r.GET("/health", s.health)
	r.POST("/mcp", s.handleMCP)

	menu := r.Group("/menu")
	{
		menu.POST("", s.createMenuItem)
		menu.GET("", s.listMenu)
		menu.GET("/search", s.searchMenu)
		menu.GET("/group-by-category", s.groupByCategory)

		gen := menu.Group("/auto-generate")
		gen.POST("", s.autoGenerate)
		gen.GET("", s.listGenerations)
		gen.GET("/statistics", s.generationStats)
		gen.GET("/recent", s.recentGenerations)
		gen.GET("/:id", s.getGeneration)
		gen.DELETE("/:id", s.deleteGeneration)

		menu.POST("/recommendations", s.recommend)

		cal := menu.Group("/calculate-calories")
		cal.POST("", s.calculateCalories)
		cal.GET("", s.listCalculations)
		cal.GET("/statistics", s.calculationStats)
		cal.GET("/:id", s.getCalculation)
		cal.DELETE("/:id", s.deleteCalculation)

		menu.GET("/:id", s.getMenuItem)
		menu.PUT("/:id", s.updateMenuItem)
		menu.DELETE("/:id", s.deleteMenuItem)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"error":   "not_found",
			"message": fmt.Sprintf("Route %s %s not found", c.Request.Method, c.Request.URL.Path),
		})
	})
	return r
}

// RequestIDMiddleware tags each request with an ID, echoed in X-Request-ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = "req_" + uuid.New().String()[:8]
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// LoggingMiddleware logs request start/end with timing
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetString("request_id")

		log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"event":      "started",
		}).Debug("Request started")

		c.Next()

		entry := log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"event":      "completed",
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request completed")
			return
		}
		entry.Info("Request completed")
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		stack := string(debug.Stack())
		log.WithFields(log.Fields{
			"request_id": c.GetString("request_id"),
			"panic":      fmt.Sprint(recovered),
			"stack":      stack,
			"event":      "panic",
		}).Error("Recovered from panic")

		body := gin.H{
			"status":  "error",
			"error":   "internal_error",
			"message": "Internal server error",
		}
		if !s.config.Production {
			body["detail"] = fmt.Sprint(recovered)
			body["stack"] = stack
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}

type envelope struct {
	Status     string              `json:"status"`
	Message    string              `json:"message"`
	Data       any                 `json:"data,omitempty"`
	Pagination *storage.Pagination `json:"pagination,omitempty"`
}

func respond(c *gin.Context, code int, message string, data any) {
	c.JSON(code, envelope{Status: "success", Message: message, Data: data})
}

func respondPage(c *gin.Context, message string, data any, page storage.Pagination) {
	c.JSON(http.StatusOK, envelope{Status: "success", Message: message, Data: data, Pagination: &page})
}

// fail maps an error onto its HTTP status and error envelope.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		verr *apperr.ValidationError
		nf   *apperr.NotFoundError
		gerr *generation.GenerationError
		xerr *extract.ExtractionError
	)
	code := http.StatusInternalServerError
	body := gin.H{"status": "error"}

	switch {
	case errors.As(err, &verr):
		code = http.StatusBadRequest
		details := verr.Details
		if details == nil {
			details = []string{}
		}
		body["error"] = "validation_error"
		body["message"] = verr.Message
		body["details"] = details
	case errors.As(err, &nf):
		code = http.StatusNotFound
		body["error"] = "not_found"
		body["message"] = nf.Message
	case errors.As(err, &gerr):
		body["error"] = "generation_error"
		body["message"] = "Failed to generate content from the language model"
	case errors.As(err, &xerr):
		body["error"] = "extraction_error"
		body["message"] = "Failed to parse structured data from the language model response"
	default:
		body["error"] = "internal_error"
		body["message"] = "Internal server error"
	}

	fields := log.Fields{
		"request_id": c.GetString("request_id"),
		"status":     code,
		"error":      err.Error(),
		"event":      "request_failed",
	}
	if code >= http.StatusInternalServerError {
		log.WithFields(fields).Error("Request failed")
	} else {
		log.WithFields(fields).Warn("Request rejected")
	}
	if !s.config.Production {
		body["detail"] = err.Error()
	}

	c.AbortWithStatusJSON(code, body)
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.NewValidation("Invalid id", "id must be a positive integer")
	}
	return id, nil
}

func (s *Server) health(c *gin.Context) {
	if err := s.svc.Ping(c.Request.Context()); err != nil {
		log.WithFields(log.Fields{"error": err.Error(), "event": "health_failed"}).Error("Storage ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "unavailable", "message": "Storage is unreachable"})
		return
	}
	respond(c, http.StatusOK, "OK", gin.H{"model": s.svc.Model(), "time": time.Now().UTC()})
}
