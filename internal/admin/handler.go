// Package admin is the operator surface: rescans, the library-root
// setting, scan status, and server stats. Every route here expects the
// surrounding group to carry auth and admin middleware.
package admin

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"comicshelf/internal/catalog"
	"comicshelf/internal/events"
	"comicshelf/internal/reader"
	"comicshelf/internal/scanner"
	"comicshelf/internal/settings"
)

type Handler struct {
	Scanner  *scanner.Scanner
	Settings *settings.Repo
	Catalog  *catalog.Repo
	Reader   *reader.Reader
	Hub      *events.Hub

	// LookupEnv is the environment snapshot for root resolution,
	// os.LookupEnv outside tests.
	LookupEnv func(string) (string, bool)
}

func NewHandler(sc *scanner.Scanner, st *settings.Repo, cat *catalog.Repo, rd *reader.Reader, hub *events.Hub) *Handler {
	return &Handler{
		Scanner:   sc,
		Settings:  st,
		Catalog:   cat,
		Reader:    rd,
		Hub:       hub,
		LookupEnv: os.LookupEnv,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scan", h.scan)
	rg.GET("/scan/status", h.scanStatus)
	rg.GET("/settings", h.getSettings)
	rg.PUT("/settings/library-root", h.setLibraryRoot)
	rg.GET("/stats", h.stats)
}

// scan runs a full rescan of the active root on this request and only
// answers once it is done. Large libraries make this slow; that is the
// documented cost of an admin-triggered scan.
func (h *Handler) scan(c *gin.Context) {
	root, source, err := settings.ResolveLibraryRoot(c.Request.Context(), h.Settings, h.LookupEnv)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve library root failed"})
		return
	}

	summary, err := h.Scanner.Run(c.Request.Context(), root)
	if err != nil {
		// previous catalog is intact; the error text is also in settings
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
			"root":  root,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"library_root": root,
		"source":       string(source),
		"scan":         summary,
	})
}

func (h *Handler) scanStatus(c *gin.Context) {
	ctx := c.Request.Context()

	root, source, err := settings.ResolveLibraryRoot(ctx, h.Settings, h.LookupEnv)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve library root failed"})
		return
	}

	out := gin.H{
		"library_root": root,
		"source":       string(source),
		"capabilities": h.Reader.Capabilities(),
	}
	for key, field := range map[string]string{
		settings.KeyScanLastStarted:  "last_started",
		settings.KeyScanLastFinished: "last_completed",
		settings.KeyScanLastError:    "last_error",
	} {
		if v, ok, err := h.Settings.Get(ctx, key); err == nil && ok {
			out[field] = v
		}
	}
	if v, ok, err := h.Settings.Get(ctx, settings.KeyScanDurationMS); err == nil && ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			out["duration_ms"] = ms
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getSettings(c *gin.Context) {
	ctx := c.Request.Context()

	all, err := h.Settings.All(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	root, source, err := settings.ResolveLibraryRoot(ctx, h.Settings, h.LookupEnv)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve library root failed"})
		return
	}

	out := gin.H{
		"settings":     all,
		"library_root": root,
		"source":       string(source),
	}
	if h.LookupEnv != nil {
		if env, ok := h.LookupEnv("COMICSHELF_LIBRARY_ROOT"); ok && env != "" {
			out["env_library_root"] = env
		}
	}
	c.JSON(http.StatusOK, out)
}

type setRootReq struct {
	LibraryRoot string `json:"library_root"`
}

// setLibraryRoot saves (or, on an empty value, clears) the persisted
// root and rescans whatever is active afterwards. The setting sticks
// even when that scan fails; the failure is reported alongside so the
// operator sees a bad path immediately.
func (h *Handler) setLibraryRoot(c *gin.Context) {
	var req setRootReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	cleaned := strings.TrimSpace(req.LibraryRoot)
	if cleaned != "" {
		if err := h.Settings.Set(ctx, settings.KeyLibraryRoot, cleaned); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
	} else {
		if err := h.Settings.Delete(ctx, settings.KeyLibraryRoot); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
			return
		}
	}

	root, source, err := settings.ResolveLibraryRoot(ctx, h.Settings, h.LookupEnv)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve library root failed"})
		return
	}

	out := gin.H{
		"library_root": root,
		"source":       string(source),
	}
	summary, err := h.Scanner.Run(ctx, root)
	if err != nil {
		out["scan_error"] = err.Error()
	} else {
		out["scan"] = summary
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) stats(c *gin.Context) {
	titles, volumes, err := h.Catalog.Counts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "counts failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"titles":  titles,
		"volumes": volumes,
		"feed":    h.Hub.Stats(),
	})
}
