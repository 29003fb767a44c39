package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/services"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

type ProductHandler struct {
	catalog services.CatalogService
}

func NewProductHandler(catalog services.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

func (ph *ProductHandler) List(c *gin.Context) {
	groupBuyOnly := c.Query("group_buy") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	products, err := ph.catalog.ListProducts(c.Request.Context(), groupBuyOnly, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"products": products})
}

func (ph *ProductHandler) Get(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	product, err := ph.catalog.GetProduct(c.Request.Context(), productID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"product": product})
}

func (ph *ProductHandler) Create(c *gin.Context) {
	var product types.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	created, err := ph.catalog.CreateProduct(c.Request.Context(), &product)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"product": created})
}

func (ph *ProductHandler) Update(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	var product types.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	product.ID = productID
	updated, err := ph.catalog.UpdateProduct(c.Request.Context(), &product)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"product": updated})
}
