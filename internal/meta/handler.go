package meta

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"comicshelf/internal/catalog"
	"comicshelf/pkg/models"
)

type Handler struct {
	Catalog *catalog.Repo
}

func NewHandler(cat *catalog.Repo) *Handler {
	return &Handler{Catalog: cat}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/titles/:title_id/meta", h.getMeta)
	rg.GET("/titles/:title_id/poster", h.serveArt(PosterBase))
	rg.GET("/titles/:title_id/logo", h.serveArt(LogoBase))
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/titles/:title_id/meta", h.getMeta)
	rg.PUT("/titles/:title_id/meta", h.putMeta)
	rg.POST("/titles/:title_id/poster", h.uploadArt(PosterBase))
	rg.POST("/titles/:title_id/logo", h.uploadArt(LogoBase))
}

func (h *Handler) getMeta(c *gin.Context) {
	title, done := h.lookupTitle(c)
	if done {
		return
	}

	m := Load(title.Path)
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no metadata"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// putMeta replaces series.json wholesale. A changed name takes effect
// in the catalog at the next scan.
func (h *Handler) putMeta(c *gin.Context) {
	title, done := h.lookupTitle(c)
	if done {
		return
	}

	var m SeriesMeta
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := Save(title.Path, &m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) serveArt(base string) gin.HandlerFunc {
	return func(c *gin.Context) {
		title, done := h.lookupTitle(c)
		if done {
			return
		}

		p, ok := FindArt(title.Path, base)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no " + base})
			return
		}
		c.File(p)
	}
}

func (h *Handler) uploadArt(base string) gin.HandlerFunc {
	return func(c *gin.Context) {
		title, done := h.lookupTitle(c)
		if done {
			return
		}

		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
			return
		}
		if !AllowedArt(strings.ToLower(filepath.Ext(file.Filename))) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file unreadable"})
			return
		}
		defer src.Close()
		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file unreadable"})
			return
		}

		if _, err := SaveArt(title.Path, base, file.Filename, data); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": base + " uploaded"})
	}
}

// lookupTitle resolves :title_id; the bool is true when a response has
// already been written.
func (h *Handler) lookupTitle(c *gin.Context) (*models.Title, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("title_id")), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid title id"})
		return nil, true
	}

	title, err := h.Catalog.GetTitle(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return nil, true
	}
	if title == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
		return nil, true
	}
	return title, false
}
