package catalog

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"comicshelf/internal/reader"
	"comicshelf/internal/render"
	"comicshelf/internal/shape"
	"comicshelf/pkg/models"
)

type Handler struct {
	Repo    *Repo
	Reader  *reader.Reader
	Renders *render.Cache
}

func NewHandler(repo *Repo, rd *reader.Reader, renders *render.Cache) *Handler {
	return &Handler{Repo: repo, Reader: rd, Renders: renders}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/titles", h.listTitles)
	rg.GET("/titles/:title_id", h.getTitle)
	rg.GET("/titles/:title_id/volumes", h.listVolumes)
	rg.GET("/titles/:title_id/volumes/:volume_id", h.getVolume)
	rg.GET("/titles/:title_id/volumes/:volume_id/pages/:page", h.readPage)
	rg.GET("/titles/:title_id/volumes/:volume_id/file/*name", h.readFile)
	rg.GET("/renders/:title_slug/:volume_slug/:page", h.renderPage)
}

func (h *Handler) listTitles(c *gin.Context) {
	items, err := h.Repo.ListTitles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(items),
		"titles": items,
	})
}

func (h *Handler) getTitle(c *gin.Context) {
	id, err := parseID(c.Param("title_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid title id"})
		return
	}

	title, err := h.Repo.GetTitle(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if title == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
		return
	}

	vols, err := h.Repo.ListVolumes(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list volumes failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"title":   title,
		"volumes": vols,
	})
}

func (h *Handler) listVolumes(c *gin.Context) {
	id, err := parseID(c.Param("title_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid title id"})
		return
	}

	title, err := h.Repo.GetTitle(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if title == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
		return
	}

	vols, err := h.Repo.ListVolumes(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list volumes failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(vols),
		"volumes": vols,
	})
}

// getVolume returns the volume row plus what the reader can say about
// it right now: storage shape, page names for dir/archive shapes, and
// whether the stored count can be trusted. A PDF with a zero count is
// flagged count_known=false rather than empty.
func (h *Handler) getVolume(c *gin.Context) {
	vol, done := h.lookupVolume(c)
	if done {
		return
	}

	form := shape.Detect(vol.Path)
	countKnown := !(form == shape.VolumePDF && vol.PageCount == 0)

	c.JSON(http.StatusOK, gin.H{
		"volume":      vol,
		"shape":       form.String(),
		"pages":       h.Reader.Pages(vol.Path),
		"count_known": countKnown,
	})
}

func (h *Handler) readPage(c *gin.Context) {
	vol, done := h.lookupVolume(c)
	if done {
		return
	}
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page number"})
		return
	}

	switch shape.Detect(vol.Path) {
	case shape.VolumePDF:
		title, err := h.Repo.GetTitle(c.Request.Context(), vol.TitleID)
		if err != nil || title == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
			return
		}
		h.servePDFPage(c, vol.Path, title.Slug, vol.Slug, page)
	case shape.VolumeDir, shape.VolumeArchive:
		p, ok := h.Reader.ReadPage(vol.Path, page)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
			return
		}
		c.Data(http.StatusOK, contentType(p.Name, p.Data), p.Data)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "volume storage missing"})
	}
}

// readFile serves a named asset from a directory-shaped volume. The
// name is validated before any read; traversal is a client error, not
// a miss.
func (h *Handler) readFile(c *gin.Context) {
	vol, done := h.lookupVolume(c)
	if done {
		return
	}
	if shape.Detect(vol.Path) != shape.VolumeDir {
		c.JSON(http.StatusNotFound, gin.H{"error": "not a directory volume"})
		return
	}

	name := strings.TrimPrefix(c.Param("name"), "/")
	b, err := h.Reader.ReadFile(vol.Path, name)
	if errors.Is(err, reader.ErrInvalidPath) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.Data(http.StatusOK, contentType(name, b), b)
}

// renderPage is the slug-addressed render endpoint; the cache key on
// disk uses the same slugs, so a warmed cache survives restarts.
func (h *Handler) renderPage(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page number"})
		return
	}

	titleSlug := c.Param("title_slug")
	volumeSlug := c.Param("volume_slug")
	vol, err := h.Repo.GetVolumeBySlugs(c.Request.Context(), titleSlug, volumeSlug)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if vol == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "volume not found"})
		return
	}
	if shape.Detect(vol.Path) != shape.VolumePDF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a pdf volume"})
		return
	}

	h.servePDFPage(c, vol.Path, titleSlug, volumeSlug, page)
}

func (h *Handler) servePDFPage(c *gin.Context, pdfPath, titleSlug, volumeSlug string, page int) {
	dpi := parseInt(c.Query("dpi"), render.DefaultDPI)
	b, err := h.Renders.Page(pdfPath, titleSlug, volumeSlug, page, dpi)
	if errors.Is(err, render.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pdf renderer not available"})
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not available"})
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

// lookupVolume resolves the :title_id/:volume_id pair. The bool is
// true when a response has already been written.
func (h *Handler) lookupVolume(c *gin.Context) (vol *models.Volume, done bool) {
	titleID, err := parseID(c.Param("title_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid title id"})
		return nil, true
	}
	volumeID, err := parseID(c.Param("volume_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid volume id"})
		return nil, true
	}

	v, err := h.Repo.GetVolume(c.Request.Context(), titleID, volumeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return nil, true
	}
	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "volume not found"})
		return nil, true
	}
	return v, false
}

func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
