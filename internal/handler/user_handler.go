package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hms-backend/internal/models"
	"hms-backend/internal/service"
	"hms-backend/pkg/utils"
)

type UserHandler struct {
	userService *service.UserService
	log         *zap.Logger
}

func NewUserHandler(userService *service.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

type CreateUserRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=150"`
	Password    string `json:"password" binding:"required,min=8"`
	FirstName   string `json:"first_name" binding:"max=150"`
	LastName    string `json:"last_name" binding:"max=150"`
	Email       string `json:"email" binding:"omitempty,email"`
	Role        string `json:"role" binding:"required,oneof=admin doctor nurse records_officer pharmacist lab_technician receptionist"`
	EmployeeID  string `json:"employee_id" binding:"max=20"`
	Department  string `json:"department" binding:"max=100"`
	PhoneNumber string `json:"phone_number" binding:"omitempty,kephone"`
}

// List returns staff accounts; ?role= filters by role
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context(), models.Role(c.Query("role")))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, users)
}

func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Create(c.Request.Context(), actorFrom(c), service.NewUser{
		Username:    req.Username,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Role:        models.Role(req.Role),
		EmployeeID:  req.EmployeeID,
		Department:  req.Department,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.CreatedResponse(c, user)
}

func (h *UserHandler) Unlock(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.Unlock(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	utils.SuccessResponse(c, user)
}
