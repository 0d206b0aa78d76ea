package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bookletku/internal/catalog"
	"bookletku/internal/gateway"
	"bookletku/internal/gateway/middleware"
	"bookletku/internal/platform"
)

// StoreGateway is the part of *gateway.Gateway the HTTP API needs.
type StoreGateway interface {
	Snapshot() gateway.State
	Subscribe() (<-chan gateway.State, func())
	FetchItems(ctx context.Context) []catalog.MenuItem
	AddItem(ctx context.Context, draft catalog.Draft) (catalog.MenuItem, error)
	UpdateItem(ctx context.Context, id string, draft catalog.Draft) error
	DeleteItem(ctx context.Context, id string) error
	ReorderItems(ctx context.Context, ordered []catalog.MenuItem) error
	RecordView(ctx context.Context, id string) error
	SetSettings(ctx context.Context, s catalog.StoreSettings) error
	SubmitOrder(ctx context.Context, meta catalog.OrderMeta, lines []catalog.CartLine) (catalog.OrderReceipt, error)
	UploadPhoto(ctx context.Context, u catalog.Upload) (string, error)
	UploadAvatar(ctx context.Context, u catalog.Upload, ownerID string) (string, error)
	Profile(ctx context.Context, userID string) (platform.ProfileRow, error)
}

type MenuHTTPHandler struct {
	gw       StoreGateway
	timeout  time.Duration
	upgrader websocket.Upgrader
}

// NewMenuHTTPHandler serves the menu API. allowedOrigins limits which
// browser origins may open the realtime stream; empty allows all.
func NewMenuHTTPHandler(gw StoreGateway, timeout time.Duration, allowedOrigins []string) *MenuHTTPHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MenuHTTPHandler{gw: gw, timeout: timeout, upgrader: newUpgrader(allowedOrigins)}
}

type ReorderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type OrderRequest struct {
	catalog.OrderMeta
	Lines []catalog.CartLine `json:"lines" binding:"required"`
}

type menuItemView struct {
	catalog.MenuItem
	DisplayBadge catalog.Badge `json:"displayBadge"`
}

type menuView struct {
	Status           gateway.Status        `json:"status"`
	Items            []menuItemView        `json:"items"`
	Categories       []string              `json:"categories"`
	CustomCategories []string              `json:"customCategories"`
	Settings         catalog.StoreSettings `json:"settings"`
	HasSettings      bool                  `json:"hasSettings"`
	Version          uint64                `json:"version"`
}

func itemView(item catalog.MenuItem) menuItemView {
	return menuItemView{MenuItem: item, DisplayBadge: item.DisplayBadge()}
}

// viewOf renders a snapshot, keeping only items in category when one is given.
func viewOf(s gateway.State, category string) menuView {
	items := make([]menuItemView, 0, len(s.Items))
	for _, item := range s.Items {
		if category != "" && item.Category != category {
			continue
		}
		items = append(items, itemView(item))
	}
	return menuView{
		Status:           s.Status,
		Items:            items,
		Categories:       catalog.Categories(s.Items),
		CustomCategories: s.CustomCategories,
		Settings:         s.Settings,
		HasSettings:      s.HasSettings,
		Version:          s.Version,
	}
}

func (h *MenuHTTPHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// --- Public ---

func (h *MenuHTTPHandler) GetMenu(c *gin.Context) {
	if c.Query("refresh") == "true" {
		ctx, cancel := h.requestContext(c)
		defer cancel()
		h.gw.FetchItems(ctx)
	}

	view := viewOf(h.gw.Snapshot(), strings.TrimSpace(c.Query("category")))
	respond(c, http.StatusOK, successWithMetaResponse("Menu retrieved successfully", view, map[string]interface{}{
		"total": len(view.Items),
	}))
}

// GetItem returns one item and counts the visit.
func (h *MenuHTTPHandler) GetItem(c *gin.Context) {
	id := c.Param("id")
	item, ok := h.gw.Snapshot().Item(id)
	if !ok {
		respond(c, http.StatusNotFound, errorResponse("Menu item not found"))
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	if err := h.gw.RecordView(ctx, id); err != nil {
		log.Printf("handlers: record view for %s: %v", id, err)
	}

	respond(c, http.StatusOK, successResponse("Menu item retrieved successfully", itemView(item)))
}

func (h *MenuHTTPHandler) GetSettings(c *gin.Context) {
	snap := h.gw.Snapshot()
	if !snap.HasSettings {
		respond(c, http.StatusNotFound, errorResponse("Store settings not configured"))
		return
	}
	respond(c, http.StatusOK, successResponse("Store settings retrieved successfully", snap.Settings))
}

// PlaceOrder prices every line from the menu so clients cannot set their own
// prices.
func (h *MenuHTTPHandler) PlaceOrder(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	snap := h.gw.Snapshot()
	lines := make([]catalog.CartLine, len(req.Lines))
	for i, line := range req.Lines {
		item, ok := snap.Item(line.ItemID)
		if !ok {
			respondError(c, &catalog.ValidationError{
				Field:   "cart",
				Message: fmt.Sprintf("line %d refers to an unknown item", i+1),
			})
			return
		}
		line.Name = item.Name
		line.Price = item.Price
		lines[i] = line
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	receipt, err := h.gw.SubmitOrder(ctx, req.OrderMeta, lines)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, successResponse("Order placed successfully", receipt))
}

// --- Admin ---

func (h *MenuHTTPHandler) CreateItem(c *gin.Context) {
	var draft catalog.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		respond(c, http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	item, err := h.gw.AddItem(ctx, draft)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, successResponse("Menu item created successfully", itemView(item)))
}

func (h *MenuHTTPHandler) UpdateItem(c *gin.Context) {
	var draft catalog.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		respond(c, http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	id := c.Param("id")
	if err := h.gw.UpdateItem(ctx, id, draft); err != nil {
		respondError(c, err)
		return
	}

	var data interface{}
	if item, ok := h.gw.Snapshot().Item(id); ok {
		data = itemView(item)
	}
	respond(c, http.StatusOK, successResponse("Menu item updated successfully", data))
}

func (h *MenuHTTPHandler) DeleteItem(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.gw.DeleteItem(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, successResponse("Menu item deleted successfully", nil))
}

// ReorderItems takes the full list of item ids in their new order.
func (h *MenuHTTPHandler) ReorderItems(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	snap := h.gw.Snapshot()
	ordered := make([]catalog.MenuItem, len(req.IDs))
	for i, id := range req.IDs {
		item, ok := snap.Item(id)
		if !ok {
			item = catalog.MenuItem{ID: id}
		}
		ordered[i] = item
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.gw.ReorderItems(ctx, ordered); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, successResponse("Menu reordered successfully", viewOf(h.gw.Snapshot(), "")))
}

func (h *MenuHTTPHandler) UpdateSettings(c *gin.Context) {
	var settings catalog.StoreSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		respond(c, http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.gw.SetSettings(ctx, settings); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, successResponse("Store settings updated successfully", h.gw.Snapshot().Settings))
}

func (h *MenuHTTPHandler) UploadPhoto(c *gin.Context) {
	upload, ok := readUpload(c)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	url, err := h.gw.UploadPhoto(ctx, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, successResponse("Photo uploaded successfully", gin.H{"url": url}))
}

// --- Authenticated ---

func (h *MenuHTTPHandler) UploadAvatar(c *gin.Context) {
	upload, ok := readUpload(c)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	url, err := h.gw.UploadAvatar(ctx, upload, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, successResponse("Avatar uploaded successfully", gin.H{"url": url}))
}

// readUpload reads the multipart "file" field into memory so the gateway can
// resend it after a token refresh.
func readUpload(c *gin.Context) (catalog.Upload, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		respond(c, http.StatusBadRequest, errorResponse("File is required"))
		return catalog.Upload{}, false
	}
	if header.Size > catalog.MAX_UPLOAD_BYTES {
		respond(c, http.StatusRequestEntityTooLarge, errorResponse(fmt.Sprintf("File is larger than %d bytes", catalog.MAX_UPLOAD_BYTES)))
		return catalog.Upload{}, false
	}

	f, err := header.Open()
	if err != nil {
		respond(c, http.StatusBadRequest, errorResponse("Unable to read file"))
		return catalog.Upload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, catalog.MAX_UPLOAD_BYTES+1))
	if err != nil {
		respond(c, http.StatusBadRequest, errorResponse("Unable to read file"))
		return catalog.Upload{}, false
	}

	return catalog.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, true
}
