package handlers

import (
	"net/http"

	"nva-backoffice/internal/middleware"
	"nva-backoffice/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

type CreatePaymentRequest struct {
	AgentID     uint            `json:"agent_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	WorkDays    int             `json:"work_days" binding:"min=0"`
	Description string          `json:"description" binding:"max=1000"`
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) Create(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	// Post to the ledger; the running total is computed there
	p, err := h.payments.Create(c.Request.Context(), services.CreatePaymentInput{
		AgentID:     req.AgentID,
		Amount:      req.Amount,
		WorkDays:    req.WorkDays,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Payment recorded successfully", "payment": p})
}

func (h *PaymentHandler) List(c *gin.Context) {
	list, err := h.payments.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list})
}

func (h *PaymentHandler) Mine(c *gin.Context) {
	list, err := h.payments.ListForAgent(c.Request.Context(), middleware.GetAgentID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list})
}

func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	// Agents may only see their own payments
	if !middleware.GetActor(c).CanManage(p.AgentID) {
		respondError(c, services.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p})
}

// agentParam reads :id and checks the caller may see that agent's ledger.
func agentParam(c *gin.Context) (uint, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return 0, false
	}
	if !middleware.GetActor(c).CanManage(id) {
		respondError(c, services.ErrForbidden)
		return 0, false
	}
	return id, true
}

func (h *PaymentHandler) ForAgent(c *gin.Context) {
	id, ok := agentParam(c)
	if !ok {
		return
	}
	list, err := h.payments.ListForAgent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list})
}

func (h *PaymentHandler) Total(c *gin.Context) {
	id, ok := agentParam(c)
	if !ok {
		return
	}
	total, err := h.payments.Total(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, total)
}
