// internal/server/tools.go
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"menu-catalog-api/internal/apperr"
	"menu-catalog-api/internal/models"
	"menu-catalog-api/internal/service"
	"menu-catalog-api/internal/validate"
)

type ListMenuParams struct {
	Query    string `json:"q,omitempty" description:"Free-text search over name, description and ingredients"`
	Category string `json:"category,omitempty" description:"Exact category filter"`
	Sort     string `json:"sort,omitempty" description:"field:asc|desc"`
	Page     int    `json:"page,omitempty"`
	PerPage  int    `json:"per_page,omitempty"`
}

type toolHandler func(c *gin.Context, req *protocol.CallToolRequest) (any, error)

func (s *Server) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"auto_generate_menu": s.toolAutoGenerate,
		"recommend_menu":     s.toolRecommend,
		"calculate_calories": s.toolCalculateCalories,
		"list_menu":          s.toolListMenu,
	}
}

// handleMCP serves MCP tools/call requests over plain HTTP POST.
func (s *Server) handleMCP(c *gin.Context) {
	var req protocol.CallToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, validate.Binding(err, "Invalid MCP request"))
		return
	}

	handler, ok := s.tools()[req.Name]
	if !ok {
		s.fail(c, apperr.NotFound("Unknown tool: %s", req.Name))
		return
	}

	log.WithFields(log.Fields{
		"request_id": c.GetString("request_id"),
		"tool":       req.Name,
		"event":      "tool_called",
	}).Info("MCP tool called")

	data, err := handler(c, &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	result, err := createJSONResponse(data)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// extractParams decodes the tool arguments into target.
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return apperr.NewValidation("Invalid tool arguments", validate.BindingDetails(err)...)
	}
	return nil
}

func createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}

func (s *Server) toolAutoGenerate(c *gin.Context, req *protocol.CallToolRequest) (any, error) {
	var params models.AutoGenerateRequest
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	return s.svc.AutoGenerate(c.Request.Context(), params)
}

func (s *Server) toolRecommend(c *gin.Context, req *protocol.CallToolRequest) (any, error) {
	var prefs models.Preferences
	if err := extractParams(req, &prefs); err != nil {
		return nil, err
	}
	return s.svc.Recommend(c.Request.Context(), prefs)
}

func (s *Server) toolCalculateCalories(c *gin.Context, req *protocol.CallToolRequest) (any, error) {
	var params models.CalorieRequest
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.MenuItems) == 0 {
		return nil, apperr.NewValidation("Invalid tool arguments", "menu_items must contain at least 1 item(s)")
	}
	return s.svc.CalculateCalories(c.Request.Context(), params)
}

func (s *Server) toolListMenu(c *gin.Context, req *protocol.CallToolRequest) (any, error) {
	var params ListMenuParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	items, page, err := s.svc.ListMenu(c.Request.Context(), service.MenuQuery{
		Query:    params.Query,
		Category: params.Category,
		Sort:     params.Sort,
		Page:     params.Page,
		PerPage:  params.PerPage,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.MenuItem{}
	}
	return gin.H{"items": items, "pagination": page}, nil
}
