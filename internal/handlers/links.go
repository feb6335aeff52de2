package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/linker/internal/models"
	"github.com/charlesng35/linker/internal/resolver"
	appErrors "github.com/charlesng35/linker/pkg/errors"
	"github.com/charlesng35/linker/pkg/logger"
	"github.com/charlesng35/linker/pkg/response"
)

// hiddenRedirectPage performs the redirect from a script instead of a
// Location header so the destination never sees the short link as referrer.
var hiddenRedirectPage = template.Must(template.New("hidden").Parse(
	`<!doctype html><html><head><meta name="referrer" content="no-referrer"></head>` +
		`<body><script>window.location.replace({{.}});</script></body></html>`))

// LinkHandler exposes the resolution engine over HTTP.
type LinkHandler struct {
	engine  *resolver.Engine
	baseURL string
	log     *zap.Logger
}

// NewLinkHandler constructs a link handler. baseURL, when set, is used to
// build absolute short URLs; otherwise the request host is used.
func NewLinkHandler(engine *resolver.Engine, baseURL string) (*LinkHandler, error) {
	if engine == nil {
		return nil, errors.New("link handler: engine is required")
	}
	return &LinkHandler{
		engine:  engine,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		log:     logger.WithModule("handlers"),
	}, nil
}

type createLinkRequest struct {
	Destination string `json:"destination" validate:"required"`
	Hidden      bool   `json:"hidden"`
}

type linkPayload struct {
	Code        string `json:"code"`
	ShortURL    string `json:"short_url"`
	Destination string `json:"destination"`
	Hidden      bool   `json:"hidden"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// POST /api/links
func (h *LinkHandler) Create(c *gin.Context) {
	var body createLinkRequest
	if !bindAndValidate(c, &body) {
		return
	}

	link, err := h.engine.Create(c.Request.Context(), body.Destination, body.Hidden)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, h.payload(c, link))
}

// GET /:code
func (h *LinkHandler) Resolve(c *gin.Context) {
	code := c.Param("code")

	res, err := h.engine.Resolve(c.Request.Context(), code)
	if err != nil {
		h.renderError(c, err)
		return
	}

	if res.Hidden {
		var buf strings.Builder
		if err := hiddenRedirectPage.Execute(&buf, res.Destination); err != nil {
			h.renderError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(buf.String()))
		return
	}

	c.Redirect(http.StatusMovedPermanently, res.Destination)
}

// DELETE /api/links/:code
func (h *LinkHandler) Delete(c *gin.Context) {
	code := c.Param("code")

	if err := h.engine.Delete(c.Request.Context(), code); err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"code": code, "status": string(models.LinkStatusDeleted)})
}

// GET /api/links/reverse?destination=...
func (h *LinkHandler) Reverse(c *gin.Context) {
	destination := c.Query("destination")

	link, err := h.engine.Reverse(c.Request.Context(), destination)
	if err != nil {
		h.renderError(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.payload(c, link))
}

// GET /api/links
func (h *LinkHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	per, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	links, total, err := h.engine.List(c.Request.Context(), page, per)
	if err != nil {
		h.renderError(c, err)
		return
	}

	payloads := make([]linkPayload, 0, len(links))
	for i := range links {
		payloads = append(payloads, h.payload(c, &links[i]))
	}

	response.SuccessWithMeta(c, http.StatusOK, payloads, &response.Meta{
		Page:    page,
		PerPage: per,
		Total:   int(total),
	})
}

func (h *LinkHandler) payload(c *gin.Context, link *models.Link) linkPayload {
	return linkPayload{
		Code:        link.Code,
		ShortURL:    h.shortURL(c, link.Code),
		Destination: link.Destination,
		Hidden:      link.Hidden,
		Status:      string(link.Status),
		CreatedAt:   link.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *LinkHandler) shortURL(c *gin.Context, code string) string {
	if h.baseURL != "" {
		return fmt.Sprintf("%s/%s", h.baseURL, code)
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, c.Request.Host, code)
}

func (h *LinkHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, resolver.ErrInvalidDestination):
		response.Error(c, appErrors.NewBadRequest(err.Error()))
	case errors.Is(err, resolver.ErrNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, resolver.ErrExhausted):
		h.log.Error("code space pressure", zap.Error(err))
		response.Error(c, appErrors.ErrCodeSpaceExhausted)
	default:
		h.log.Error("store failure", zap.Error(err))
		response.Error(c, appErrors.ErrStoreUnavailable)
	}
}
