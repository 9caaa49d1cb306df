// internal/utils/pagination.go
package utils

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultSort     = "created_at"
)

// PaginationParams are the list query options shared by every listing
// endpoint. Sort is checked against a per-listing allow list in ApplySort.
type PaginationParams struct {
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
	Sort     string `json:"sort"`
	Order    string `json:"order"`
	Search   string `json:"search"`
	Category string `json:"category"`
}

type PaginationResult struct {
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"total_pages"`
	HasMore    bool        `json:"has_more"`
	Data       interface{} `json:"data"`
}

func (p PaginationParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// GetPaginationParams reads page, limit, sort, order, search and category.
// The feed client sends per_page and "-field" sorts, so both are accepted.
func GetPaginationParams(c *gin.Context) PaginationParams {
	params := PaginationParams{
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 0),
		Sort:     c.DefaultQuery("sort", defaultSort),
		Order:    strings.ToLower(c.DefaultQuery("order", "desc")),
		Search:   strings.TrimSpace(c.Query("search")),
		Category: strings.TrimSpace(c.Query("category")),
	}
	if params.Limit == 0 {
		params.Limit = queryInt(c, "per_page", defaultPageSize)
	}

	if strings.HasPrefix(params.Sort, "-") {
		params.Sort = strings.TrimPrefix(params.Sort, "-")
		params.Order = "desc"
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 || params.Limit > maxPageSize {
		params.Limit = defaultPageSize
	}
	if params.Order != "asc" && params.Order != "desc" {
		params.Order = "desc"
	}
	return params
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func ApplyPagination(db *gorm.DB, params PaginationParams) *gorm.DB {
	return db.Offset(params.Offset()).Limit(params.Limit)
}

// ApplySort orders by params.Sort when it is in allowed, else by created_at.
// id breaks ties so pages do not repeat rows with equal sort keys.
func ApplySort(db *gorm.DB, params PaginationParams, allowed []string) *gorm.DB {
	field := defaultSort
	for _, candidate := range allowed {
		if candidate == params.Sort {
			field = candidate
			break
		}
	}

	order := "desc"
	if params.Order == "asc" {
		order = "asc"
	}
	return db.Order(field + " " + order).Order("id " + order)
}

func CreatePaginationResult(data interface{}, total int64, params PaginationParams) PaginationResult {
	totalPages := 0
	if params.Limit > 0 {
		totalPages = int((total + int64(params.Limit) - 1) / int64(params.Limit))
	}

	return PaginationResult{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    params.Page < totalPages,
		Data:       data,
	}
}

func SetPaginationHeaders(c *gin.Context, result PaginationResult) {
	c.Header("X-Total-Count", strconv.FormatInt(result.Total, 10))
	c.Header("X-Page", strconv.Itoa(result.Page))
	c.Header("X-Per-Page", strconv.Itoa(result.Limit))
	c.Header("X-Total-Pages", strconv.Itoa(result.TotalPages))
}
