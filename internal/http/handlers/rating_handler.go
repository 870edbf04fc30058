package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/services-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/services-marketplace/internal/repository"
	"github.com/ignatzorin/services-marketplace/internal/service"
)

// RatingHandler оценки выполненных заявок.
type RatingHandler struct {
	ratings *service.RatingService
}

func NewRatingHandler(ratings *service.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

// Create POST /ratings.
func (h *RatingHandler) Create(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	var req struct {
		ServiceRequest uuid.UUID `json:"service_request"`
		Description    string    `json:"description"`
		Rating         int       `json:"rating"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	rating, err := h.ratings.Create(c.Request.Context(), actor, service.RatingInput{
		ServiceRequestID: req.ServiceRequest,
		Description:      req.Description,
		Rating:           req.Rating,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}

// List GET /ratings?service_request=&created_by=.
func (h *RatingHandler) List(c *gin.Context) {
	requestID, err := common.OptionalUUIDQuery(c, "service_request")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	createdBy, err := common.OptionalUUIDQuery(c, "created_by")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	limit, offset := common.GetPagination(c)

	page, err := h.ratings.List(c.Request.Context(), repository.RatingFilter{
		ServiceRequestID: requestID,
		CreatedByID:      createdBy,
		Limit:            limit,
		Offset:           offset,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get GET /ratings/:id.
func (h *RatingHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	rating, err := h.ratings.Get(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, rating)
}
