package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/store"
	"github.com/reelhub/backend/internal/util"
)

// CreateProduct lists a new product for sale
// POST /api/v1/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req store.ProductInput
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.Store.CreateProduct(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, "Failed to create product")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// ListProducts browses products, optionally ?seller_id= and ?q=
// GET /api/v1/products
func (h *Handlers) ListProducts(c *gin.Context) {
	limit, offset := util.ParsePagination(c)
	products, total, err := h.Store.ListProducts(c.Request.Context(), store.ProductFilter{
		SellerID: c.Query("seller_id"),
		ViewerID: util.OptionalUserID(c),
		Query:    c.Query("q"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondError(c, err, "Failed to list products")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"meta":     gin.H{"limit": limit, "offset": offset, "total": total},
	})
}

// GetProduct returns one product
// GET /api/v1/products/:id
func (h *Handlers) GetProduct(c *gin.Context) {
	product, err := h.Store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load product")
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

// UpdateProduct changes a product; sellers only
// PATCH /api/v1/products/:id
func (h *Handlers) UpdateProduct(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req store.ProductPatch
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.Store.UpdateProduct(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to update product")
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

// DeleteProduct removes a product; sellers only
// DELETE /api/v1/products/:id
func (h *Handlers) DeleteProduct(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.Store.DeleteProduct(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete product")
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadProductImage replaces the product image
// POST /api/v1/products/:id/image (multipart: image)
func (h *Handlers) UploadProductImage(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		util.RespondBadRequest(c, "image file is required")
		return
	}
	if !util.IsValidImageFile(header.Filename) {
		util.RespondValidationError(c, "image", "unsupported image type")
		return
	}
	file, err := header.Open()
	if err != nil {
		util.RespondBadRequest(c, "unreadable image")
		return
	}
	defer file.Close()

	product, err := h.Store.UploadProductImage(c.Request.Context(), userID, c.Param("id"), header.Filename, file)
	if err != nil {
		respondError(c, err, "Failed to upload image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

// PlaceOrder buys products from one seller
// POST /api/v1/orders
func (h *Handlers) PlaceOrder(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req store.PlaceOrderInput
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.Store.PlaceOrder(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, "Failed to place order")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// ListOrders lists orders placed by the caller, or received with ?as=seller
// GET /api/v1/orders
func (h *Handlers) ListOrders(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	role := store.RoleBuyer
	if c.Query("as") == "seller" {
		role = store.RoleSeller
	}
	limit, offset := util.ParsePagination(c)

	orders, total, err := h.Store.ListOrders(c.Request.Context(), store.OrderFilter{
		UserID: userID,
		Role:   role,
		Status: models.OrderStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, err, "Failed to list orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"meta":   gin.H{"limit": limit, "offset": offset, "total": total},
	})
}

// GetOrder returns an order to its buyer or seller
// GET /api/v1/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	order, err := h.Store.GetOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateOrderStatus moves an order through its status machine
// PATCH /api/v1/orders/:id/status
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status" binding:"required,oneof=paid shipped delivered cancelled"`
	}
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.Store.Transition(c.Request.Context(), userID, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err, "Failed to update order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
