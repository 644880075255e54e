package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"menu-catalog-api/internal/models"
	"menu-catalog-api/internal/service"
	"menu-catalog-api/internal/validate"
)

type menuListQuery struct {
	Q           string   `form:"q"`
	Category    string   `form:"category"`
	MinPrice    *float64 `form:"min_price" binding:"omitempty,gte=0"`
	MaxPrice    *float64 `form:"max_price" binding:"omitempty,gte=0"`
	MaxCalories *int     `form:"max_cal" binding:"omitempty,gte=0"`
	Sort        string   `form:"sort"`
	Page        int      `form:"page" binding:"omitempty,gte=1"`
	PerPage     int      `form:"per_page" binding:"omitempty,gte=1"`
}

type historyListQuery struct {
	Q           string   `form:"q"`
	StartDate   string   `form:"start_date"`
	EndDate     string   `form:"end_date"`
	MinCalories *float64 `form:"min_calories" binding:"omitempty,gte=0"`
	MaxCalories *float64 `form:"max_calories" binding:"omitempty,gte=0"`
	Page        int      `form:"page" binding:"omitempty,gte=1"`
	PerPage     int      `form:"per_page" binding:"omitempty,gte=1"`
}

func (q historyListQuery) toService() service.HistoryQuery {
	return service.HistoryQuery{
		Query:       q.Q,
		StartDate:   q.StartDate,
		EndDate:     q.EndDate,
		MinCalories: q.MinCalories,
		MaxCalories: q.MaxCalories,
		Page:        q.Page,
		PerPage:     q.PerPage,
	}
}

type groupQuery struct {
	Mode        string `form:"mode" binding:"omitempty,oneof=count list"`
	PerCategory int    `form:"per_category" binding:"omitempty,gte=1"`
}

type recentQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1"`
}

const invalidQuery = "Invalid query parameters"

// Catalog

func (s *Server) createMenuItem(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, validate.Binding(err, "Invalid request body"))
		return
	}
	item, err := s.svc.CreateMenuItem(c.Request.Context(), body)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Menu item created", item)
}

func (s *Server) listMenu(c *gin.Context) {
	var q menuListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, validate.Binding(err, invalidQuery))
		return
	}
	items, page, err := s.svc.ListMenu(c.Request.Context(), service.MenuQuery{
		Query:       q.Q,
		Category:    q.Category,
		MinPrice:    q.MinPrice,
		MaxPrice:    q.MaxPrice,
		MaxCalories: q.MaxCalories,
		Sort:        q.Sort,
		Page:        q.Page,
		PerPage:     q.PerPage,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if items == nil {
		items = []*models.MenuItem{}
	}
	respondPage(c, "Menu items retrieved", items, page)
}

func (s *Server) searchMenu(c *gin.Context) {
	var q menuListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, validate.Binding(err, invalidQuery))
		return
	}
	items, page, err := s.svc.SearchMenu(c.Request.Context(), q.Q, q.Page, q.PerPage)
	if err != nil {
		s.fail(c, err)
		return
	}
	if items == nil {
		items = []*models.MenuItem{}
	}
	respondPage(c, "Search results", items, page)
}

func (s *Server) groupByCategory(c *gin.Context) {
	var q groupQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, validate.Binding(err, invalidQuery))
		return
	}
	groups, err := s.svc.GroupByCategory(c.Request.Context(), q.Mode, q.PerCategory)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Menu items grouped by category", groups)
}

func (s *Server) getMenuItem(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	item, err := s.svc.GetMenuItem(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Menu item retrieved", item)
}

func (s *Server) updateMenuItem(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, validate.Binding(err, "Invalid request body"))
		return
	}
	item, err := s.svc.UpdateMenuItem(c.Request.Context(), id, body)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Menu item updated", item)
}

func (s *Server) deleteMenuItem(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.svc.DeleteMenuItem(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Menu item deleted", nil)
}

// Generation

func (s *Server) autoGenerate(c *gin.Context) {
	var req models.AutoGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, validate.Binding(err, "Invalid request body"))
		return
	}
	res, err := s.svc.AutoGenerate(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Menu items generated", res)
}

func (s *Server) listGenerations(c *gin.Context) {
	var q historyListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, validate.Binding(err, invalidQuery))
		return
	}
	recs, page, err := s.svc.ListGenerations(c.Request.Context(), q.toService())
	if err != nil {
		s.fail(c, err)
		return
	}
	if recs == nil {
		recs = []*models.ProvenanceRecord{}
	}
	respondPage(c, "Generated menus retrieved", recs, page)
}

func (s *Server) getGeneration(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	rec, err := s.svc.GetGeneration(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Generated menu retrieved", rec)
}

func (s *Server) deleteGeneration(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.svc.DeleteGeneration(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Generated menu deleted", nil)
}

func (s *Server) generationStats(c *gin.Context) {
	stats, err := s.svc.GenerationStats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Generation statistics retrieved", stats)
}

func (s *Server) recentGenerations(c *gin.Context) {
	var q recentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, validate.Binding(err, invalidQuery))
		return
	}
	recs, err := s.svc.RecentGenerations(c.Request.Context(), q.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if recs == nil {
		recs = []*models.ProvenanceRecord{}
	}
	respond(c, http.StatusOK, "Recent generated menus retrieved", recs)
}

// Recommendations

func (s *Server) recommend(c *gin.Context) {
	var prefs models.Preferences
	// an empty body means no preferences
	if err := c.ShouldBindJSON(&prefs); err != nil && !errors.Is(err, io.EOF) {
		s.fail(c, validate.Binding(err, "Invalid request body"))
		return
	}
	rec, err := s.svc.Recommend(c.Request.Context(), prefs)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Menu recommendations generated", rec)
}

// Calories

func (s *Server) calculateCalories(c *gin.Context) {
	var req models.CalorieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, validate.Binding(err, "Invalid request body"))
		return
	}
	calc, err := s.svc.CalculateCalories(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Calories calculated", calc)
}

func (s *Server) listCalculations(c *gin.Context) {
	var q historyListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, validate.Binding(err, invalidQuery))
		return
	}
	recs, page, err := s.svc.ListCalculations(c.Request.Context(), q.toService())
	if err != nil {
		s.fail(c, err)
		return
	}
	if recs == nil {
		recs = []*models.ProvenanceRecord{}
	}
	respondPage(c, "Calorie calculations retrieved", recs, page)
}

func (s *Server) getCalculation(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	rec, err := s.svc.GetCalculation(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Calorie calculation retrieved", rec)
}

func (s *Server) deleteCalculation(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.svc.DeleteCalculation(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Calorie calculation deleted", nil)
}

func (s *Server) calculationStats(c *gin.Context) {
	stats, err := s.svc.CalculationStats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Calorie statistics retrieved", stats)
}
