package handlers

import (
	"net/http"

	"nva-backoffice/internal/middleware"
	"nva-backoffice/internal/services"

	"github.com/gin-gonic/gin"
)

type AgentHandler struct {
	agents *services.AgentService
}

type AgentFieldsRequest struct {
	Email        *string `json:"email" binding:"omitempty,email"`
	FirstName    *string `json:"first_name" binding:"omitempty,max=150"`
	LastName     *string `json:"last_name" binding:"omitempty,max=150"`
	Age          *int    `json:"age" binding:"omitempty,min=0,max=120"`
	Gender       *string `json:"gender" binding:"omitempty,oneof=Male Female Other"`
	Location     *string `json:"location" binding:"omitempty,max=100"`
	PhoneNumber  *string `json:"phone_number" binding:"omitempty,max=20"`
	Measurements *string `json:"measurements" binding:"omitempty,max=100"`
}

func (r AgentFieldsRequest) fields() services.AgentFields {
	return services.AgentFields{
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Age:          r.Age,
		Gender:       r.Gender,
		Location:     r.Location,
		PhoneNumber:  r.PhoneNumber,
		Measurements: r.Measurements,
	}
}

type CreateAgentRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	IsAdmin  bool   `json:"is_admin"`
	AgentFieldsRequest
}

type UpdateAgentRequest struct {
	AgentFieldsRequest
	IsActive *bool `json:"is_active"`
	IsAdmin  *bool `json:"is_admin"`
}

func NewAgentHandler(agents *services.AgentService) *AgentHandler {
	return &AgentHandler{agents: agents}
}

func (h *AgentHandler) Create(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// Create agent with a generated password
	agent, password, err := h.agents.Create(c.Request.Context(), services.CreateAgentInput{
		Username:    req.Username,
		IsAdmin:     req.IsAdmin,
		AgentFields: req.fields(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	// The password is only ever returned here
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Agent created successfully",
		"agent":    services.NewProfile(agent),
		"password": password,
	})
}

func (h *AgentHandler) List(c *gin.Context) {
	agents, err := h.agents.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": services.NewProfiles(agents)})
}

func (h *AgentHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	agent, err := h.agents.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": services.NewProfile(agent)})
}

func (h *AgentHandler) update(c *gin.Context, id uint) {
	var req UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// Flags are only applied for admins
	agent, err := h.agents.Update(c.Request.Context(), middleware.GetActor(c), id, services.UpdateAgentInput{
		AgentFields: req.fields(),
		IsActive:    req.IsActive,
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Agent updated successfully", "agent": services.NewProfile(agent)})
}

func (h *AgentHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	h.update(c, id)
}

func (h *AgentHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.agents.Delete(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Agent deleted successfully"})
}

func (h *AgentHandler) RegeneratePassword(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	password, err := h.agents.RegeneratePassword(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password regenerated", "password": password})
}

func (h *AgentHandler) GetProfile(c *gin.Context) {
	agent, err := h.agents.Get(c.Request.Context(), middleware.GetAgentID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": services.NewProfile(agent)})
}

func (h *AgentHandler) UpdateProfile(c *gin.Context) {
	h.update(c, middleware.GetAgentID(c))
}

func (h *AgentHandler) UploadPhoto(c *gin.Context) {
	// Get uploaded file
	upload, closeFn, ok := formUpload(c, "photo")
	if !ok {
		return
	}
	defer closeFn()

	// Replace any photo of the same type
	photo, err := h.agents.UploadPhoto(c.Request.Context(), middleware.GetAgentID(c), services.PhotoUpload{
		PhotoType: c.PostForm("photo_type"),
		Upload:    upload,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Photo uploaded successfully", "photo": photo})
}

func (h *AgentHandler) DeletePhoto(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.agents.DeletePhoto(c.Request.Context(), middleware.GetAgentID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Photo deleted successfully"})
}

// Directory lists users for starting conversations; ?type=agents|admins
// narrows the list.
func (h *AgentHandler) Directory(c *gin.Context) {
	users, err := h.agents.Directory(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": services.NewProfiles(users)})
}
