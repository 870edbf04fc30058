package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/services-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/service"
)

// AdvertiseHandler категории и объявления.
type AdvertiseHandler struct {
	svc *service.AdvertiseService
}

func NewAdvertiseHandler(svc *service.AdvertiseService) *AdvertiseHandler {
	return &AdvertiseHandler{svc: svc}
}

type categoryBody struct {
	Name    string     `json:"name"`
	Parent  *uuid.UUID `json:"parent"`
	Keyword string     `json:"keyword"`
}

func (b categoryBody) input() service.CategoryInput {
	return service.CategoryInput{Name: b.Name, ParentID: b.Parent, Keyword: b.Keyword}
}

// ListCategories GET /categories?parent=. Без parent отдаёт корневые категории.
func (h *AdvertiseHandler) ListCategories(c *gin.Context) {
	parentID, err := common.OptionalUUIDQuery(c, "parent")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	items, err := h.svc.Categories(c.Request.Context(), parentID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetCategory GET /categories/:id.
func (h *AdvertiseHandler) GetCategory(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	cat, err := h.svc.Category(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// CreateCategory POST /categories.
func (h *AdvertiseHandler) CreateCategory(c *gin.Context) {
	var req categoryBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	cat, err := h.svc.CreateCategory(c.Request.Context(), req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// UpdateCategory PUT /categories/:id.
func (h *AdvertiseHandler) UpdateCategory(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	var req categoryBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	cat, err := h.svc.UpdateCategory(c.Request.Context(), id, req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// DeleteCategory DELETE /categories/:id.
func (h *AdvertiseHandler) DeleteCategory(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := h.svc.DeleteCategory(c.Request.Context(), id); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Kinds GET /advertisements/kinds.
func (h *AdvertiseHandler) Kinds(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Kinds())
}

type advertisementBody struct {
	Category     uuid.UUID       `json:"category"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Location     string          `json:"location"`
	Availability *bool           `json:"availability"`
	Details      json.RawMessage `json:"details"`
	Latitude     *float64        `json:"latitude"`
	Longitude    *float64        `json:"longitude"`
}

func (b advertisementBody) input() service.AdvertisementInput {
	return service.AdvertisementInput{
		CategoryID:   b.Category,
		Title:        b.Title,
		Description:  b.Description,
		Price:        b.Price,
		Location:     b.Location,
		Availability: b.Availability,
		Details:      b.Details,
		Latitude:     b.Latitude,
		Longitude:    b.Longitude,
	}
}

func decimalQuery(c *gin.Context, key string) (*decimal.Decimal, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, apperror.Field(key, "A valid number is required.")
	}
	return &d, nil
}

// ListAdvertisements GET /advertisements?category=&content_type=&query=&min_price=&max_price=&near=lat,lng&mine=true.
func (h *AdvertiseHandler) ListAdvertisements(c *gin.Context) {
	var f models.AdvertisementFilter
	var err error

	if f.CategoryID, err = common.OptionalUUIDQuery(c, "category"); err != nil {
		common.RespondAppError(c, err)
		return
	}
	if f.MinPrice, err = decimalQuery(c, "min_price"); err != nil {
		common.RespondAppError(c, err)
		return
	}
	if f.MaxPrice, err = decimalQuery(c, "max_price"); err != nil {
		common.RespondAppError(c, err)
		return
	}
	if near := c.Query("near"); near != "" {
		if f.GeohashPrefix, err = service.ParseNear(near); err != nil {
			common.RespondAppError(c, err)
			return
		}
	}
	if c.Query("mine") == "true" {
		userID, err := common.CurrentUserID(c)
		if err != nil {
			common.RespondUnauthorized(c)
			return
		}
		f.UserID = &userID
	}
	f.ContentType = c.Query("content_type")
	f.Query = c.Query("query")
	f.Limit, f.Offset = common.GetPagination(c)

	page, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetAdvertisement GET /advertisements/:id.
func (h *AdvertiseHandler) GetAdvertisement(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	ad, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

// CreateAdvertisement POST /advertisements.
func (h *AdvertiseHandler) CreateAdvertisement(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}
	var req advertisementBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	ad, err := h.svc.Create(c.Request.Context(), actor, req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ad)
}

// UpdateAdvertisement PUT /advertisements/:id.
func (h *AdvertiseHandler) UpdateAdvertisement(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	var req advertisementBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	ad, err := h.svc.Update(c.Request.Context(), id, actor, req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

// DeleteAdvertisement DELETE /advertisements/:id.
func (h *AdvertiseHandler) DeleteAdvertisement(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, actor); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
