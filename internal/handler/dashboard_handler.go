package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowstudio/studio-api/internal/models"
	"github.com/flowstudio/studio-api/internal/service"
	appErrors "github.com/flowstudio/studio-api/pkg/errors"
	"github.com/flowstudio/studio-api/pkg/response"
)

// DashboardHandler serves the role-specific home views.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Home godoc
// @Summary Role-specific dashboard
// @Description Returns the member, instructor or admin dashboard depending on the caller's role.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Home(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var (
		payload interface{}
		err     error
	)
	switch claims.Role {
	case models.RoleAdmin:
		payload, err = h.service.Admin(c.Request.Context())
	case models.RoleInstructor:
		payload, err = h.service.Instructor(c.Request.Context(), claims.Email)
	default:
		payload, err = h.service.Alumna(c.Request.Context(), claims.Email)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payload, nil)
}
