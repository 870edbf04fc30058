package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/services-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/service"
)

// ProviderHandler поставщики услуг и их сотрудники.
type ProviderHandler struct {
	providers *service.ProviderService
}

func NewProviderHandler(providers *service.ProviderService) *ProviderHandler {
	return &ProviderHandler{providers: providers}
}

type userBody struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Name        string  `json:"name"`
	Phone       *string `json:"phone"`
	CurrentCity *string `json:"current_city"`
}

func (b userBody) input() service.UserInput {
	return service.UserInput(b)
}

type providerBody struct {
	User           userBody    `json:"user"`
	Name           string      `json:"name"`
	CoverPhoto     *string     `json:"cover_photo"`
	Description    string      `json:"description"`
	Licence        *string     `json:"licence"`
	Passport       *string     `json:"passport"`
	LicenceStart   *string     `json:"licence_start"`
	LicenceEnd     *string     `json:"licence_end"`
	ResidencePhoto *string     `json:"residence_photo"`
	ContractInfo   *string     `json:"contract_info"`
	Cities         []string    `json:"cities"`
	Services       []uuid.UUID `json:"services"`
}

func parseDate(field string, v *string, fields map[string]string) *time.Time {
	if v == nil || *v == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", *v)
	if err != nil {
		fields[field] = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
		return nil
	}
	return &t
}

func (b providerBody) input() (service.ProviderInput, error) {
	fields := map[string]string{}
	in := service.ProviderInput{
		User:           b.User.input(),
		Name:           b.Name,
		CoverPhoto:     b.CoverPhoto,
		Description:    b.Description,
		Licence:        b.Licence,
		Passport:       b.Passport,
		LicenceStart:   parseDate("licence_start", b.LicenceStart, fields),
		LicenceEnd:     parseDate("licence_end", b.LicenceEnd, fields),
		ResidencePhoto: b.ResidencePhoto,
		ContractInfo:   b.ContractInfo,
		Cities:         b.Cities,
		Services:       b.Services,
	}
	if len(fields) > 0 {
		return in, apperror.Fields(fields)
	}
	return in, nil
}

// List GET /providers?query=.
func (h *ProviderHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	page, err := h.providers.List(c.Request.Context(), models.ProviderFilter{
		Query:  c.Query("query"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get GET /providers/:id.
func (h *ProviderHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	p, err := h.providers.Get(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create POST /providers.
func (h *ProviderHandler) Create(c *gin.Context) {
	var req providerBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	p, err := h.providers.Create(c.Request.Context(), in)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Update PUT /providers/:id.
func (h *ProviderHandler) Update(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	var req providerBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	p, err := h.providers.Update(c.Request.Context(), id, in)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete DELETE /providers/:id.
func (h *ProviderHandler) Delete(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := h.providers.Delete(c.Request.Context(), id); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddEmployee POST /providers/:id/add-employee.
func (h *ProviderHandler) AddEmployee(c *gin.Context) {
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
	var req userBody
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	user, err := h.providers.AddEmployee(c.Request.Context(), actor, id, req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Employees GET /providers/:id/get-employees.
func (h *ProviderHandler) Employees(c *gin.Context) {
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

	limit, offset := common.GetPagination(c)
	page, err := h.providers.Employees(c.Request.Context(), actor, id, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// TotalEarning GET /providers/:id/get-total-earning.
func (h *ProviderHandler) TotalEarning(c *gin.Context) {
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

	total, err := h.providers.TotalEarning(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_earning": total})
}
