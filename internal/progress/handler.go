package progress

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"comicshelf/internal/catalog"
	"comicshelf/internal/events"
)

type Handler struct {
	Repo    *Repo
	Catalog *catalog.Repo
	Hub     *events.Hub
}

func NewHandler(repo *Repo, cat *catalog.Repo, hub *events.Hub) *Handler {
	return &Handler{Repo: repo, Catalog: cat, Hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/continue", h.continueAll)
	rg.GET("/titles/:title_id/continue", h.continueTitle)
	rg.PUT("/progress/:title_id/:volume_id", h.set)
	rg.GET("/progress/:title_id/:volume_id", h.get)
	rg.DELETE("/progress/:title_id/:volume_id", h.clearVolume)
	rg.DELETE("/progress/:title_id", h.clearTitle)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.DELETE("/progress", h.clearAll)
}

type setReq struct {
	PageIndex *int `json:"page_index"`
}

func (h *Handler) set(c *gin.Context) {
	titleID, volumeID, ok := pathIDs(c)
	if !ok {
		return
	}

	var req setReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PageIndex == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_index required"})
		return
	}
	if *req.PageIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_index must be >= 0"})
		return
	}

	vol, err := h.Catalog.GetVolume(c.Request.Context(), titleID, volumeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if vol == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "volume not found"})
		return
	}

	saved, err := h.Repo.Set(c.Request.Context(), titleID, volumeID, *req.PageIndex)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	if h.Hub != nil {
		go h.Hub.BroadcastJSON(events.ProgressUpdated(titleID, volumeID, saved.PageIndex))
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) get(c *gin.Context) {
	titleID, volumeID, ok := pathIDs(c)
	if !ok {
		return
	}

	p, err := h.Repo.Get(c.Request.Context(), titleID, volumeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no progress"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) clearVolume(c *gin.Context) {
	titleID, volumeID, ok := pathIDs(c)
	if !ok {
		return
	}

	existed, err := h.Repo.ClearVolume(c.Request.Context(), titleID, volumeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"error": "no progress"})
		return
	}

	if h.Hub != nil {
		go h.Hub.BroadcastJSON(events.ProgressCleared(titleID, volumeID))
	}
	c.JSON(http.StatusOK, gin.H{"message": "cleared"})
}

func (h *Handler) clearTitle(c *gin.Context) {
	titleID, err := parseID(c.Param("title_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid title id"})
		return
	}

	n, err := h.Repo.ClearTitle(c.Request.Context(), titleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}

	if h.Hub != nil && n > 0 {
		go h.Hub.BroadcastJSON(events.ProgressCleared(titleID, 0))
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

func (h *Handler) clearAll(c *gin.Context) {
	n, err := h.Repo.ClearAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

func (h *Handler) continueAll(c *gin.Context) {
	entries, err := h.Repo.LastReadAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

func (h *Handler) continueTitle(c *gin.Context) {
	titleID, err := parseID(c.Param("title_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid title id"})
		return
	}

	title, err := h.Catalog.GetTitle(c.Request.Context(), titleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if title == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "title not found"})
		return
	}

	entry, err := h.Repo.LastRead(c.Request.Context(), titleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no progress"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// pathIDs parses :title_id/:volume_id, answering 400 itself on bad
// input.
func pathIDs(c *gin.Context) (titleID, volumeID int64, ok bool) {
	titleID, err := parseID(c.Param("title_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid title id"})
		return 0, 0, false
	}
	volumeID, err = parseID(c.Param("volume_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid volume id"})
		return 0, 0, false
	}
	return titleID, volumeID, true
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
