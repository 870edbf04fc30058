package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/services-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/services-marketplace/internal/http/middleware"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/service"
)

// CatalogHandler дерево услуг и их варианты.
type CatalogHandler struct {
	services *service.CatalogService
	features *service.FeatureService
}

func NewCatalogHandler(services *service.CatalogService, features *service.FeatureService) *CatalogHandler {
	return &CatalogHandler{services: services, features: features}
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(middleware.ContextRoleKey) == models.RoleAdmin
}

type serviceRequestBody struct {
	Name        string     `json:"name"`
	Parent      *uuid.UUID `json:"parent"`
	CoverPhoto  *string    `json:"cover_photo"`
	Description string     `json:"description"`
	IsActive    *bool      `json:"is_active"`
}

func (b serviceRequestBody) input() service.ServiceInput {
	return service.ServiceInput{
		Name:        b.Name,
		ParentID:    b.Parent,
		CoverPhoto:  b.CoverPhoto,
		Description: b.Description,
		IsActive:    b.IsActive,
	}
}

// ListServices GET /services?query=&parent=&roots=true&city=.
func (h *CatalogHandler) ListServices(c *gin.Context) {
	parentID, err := common.OptionalUUIDQuery(c, "parent")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	limit, offset := common.GetPagination(c)

	page, err := h.services.List(c.Request.Context(), isAdmin(c), models.ServiceFilter{
		Query:     c.Query("query"),
		ParentID:  parentID,
		RootsOnly: c.Query("roots") == "true",
		City:      c.Query("city"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ServicesDropdown GET /services/dropdown.
func (h *CatalogHandler) ServicesDropdown(c *gin.Context) {
	items, err := h.services.Dropdown(c.Request.Context(), isAdmin(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetService GET /services/:id.
func (h *CatalogHandler) GetService(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	svc, err := h.services.Get(c.Request.Context(), isAdmin(c), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

// CreateService POST /services.
func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req serviceRequestBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	svc, err := h.services.Create(c.Request.Context(), req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, svc)
}

// UpdateService PUT /services/:id.
func (h *CatalogHandler) UpdateService(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	var req serviceRequestBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	svc, err := h.services.Update(c.Request.Context(), id, req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

// DeleteService DELETE /services/:id.
func (h *CatalogHandler) DeleteService(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := h.services.Delete(c.Request.Context(), id); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type fieldBody struct {
	FieldName        string           `json:"field_name"`
	Label            string           `json:"label"`
	FieldType        string           `json:"field_type"`
	IsPriceUnitField bool             `json:"is_price_unit_field"`
	PricePerUnit     *decimal.Decimal `json:"price_per_unit"`
	IsRequired       *bool            `json:"is_required"`
	IsActive         *bool            `json:"is_active"`
}

type featureBody struct {
	Service       uuid.UUID   `json:"service"`
	Name          string      `json:"name"`
	CoverPhoto    *string     `json:"cover_photo"`
	Description   string      `json:"description"`
	IsActive      *bool       `json:"is_active"`
	Cities        []string    `json:"cities"`
	ServiceFields []fieldBody `json:"service_fields"`
}

func (b featureBody) input() service.FeatureInput {
	fields := make([]service.FieldInput, len(b.ServiceFields))
	for i, f := range b.ServiceFields {
		fields[i] = service.FieldInput(f)
	}
	return service.FeatureInput{
		ServiceID:   b.Service,
		Name:        b.Name,
		CoverPhoto:  b.CoverPhoto,
		Description: b.Description,
		IsActive:    b.IsActive,
		Cities:      b.Cities,
		Fields:      fields,
	}
}

// ListFeatures GET /features?query=&service=&city=.
func (h *CatalogHandler) ListFeatures(c *gin.Context) {
	serviceID, err := common.OptionalUUIDQuery(c, "service")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	limit, offset := common.GetPagination(c)

	page, err := h.features.List(c.Request.Context(), isAdmin(c), models.FeatureFilter{
		Query:     c.Query("query"),
		ServiceID: serviceID,
		City:      c.Query("city"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// FieldTypes GET /features/field-types.
func (h *CatalogHandler) FieldTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.features.FieldTypes())
}

// FeaturesDropdown GET /features/dropdown.
func (h *CatalogHandler) FeaturesDropdown(c *gin.Context) {
	items, err := h.features.Dropdown(c.Request.Context(), isAdmin(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetFeature GET /features/:id.
func (h *CatalogHandler) GetFeature(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	f, err := h.features.Get(c.Request.Context(), isAdmin(c), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// CreateFeature POST /features.
func (h *CatalogHandler) CreateFeature(c *gin.Context) {
	var req featureBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	f, err := h.features.Create(c.Request.Context(), req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// UpdateFeature PUT /features/:id.
func (h *CatalogHandler) UpdateFeature(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	var req featureBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	f, err := h.features.Update(c.Request.Context(), id, req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// DeleteFeature DELETE /features/:id.
func (h *CatalogHandler) DeleteFeature(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := h.features.Delete(c.Request.Context(), id); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleFeature POST /features/:id/activate-deactivate.
func (h *CatalogHandler) ToggleFeature(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := h.features.ToggleActive(c.Request.Context(), id); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

// ToggleField POST /features/:id/activate-deactivate-field/:field_id.
func (h *CatalogHandler) ToggleField(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	fieldID, err := common.ParseUUIDParam(c, "field_id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := h.features.ToggleFieldActive(c.Request.Context(), id, fieldID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}
