package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/backend"
	"checkout-service/internal/catalog"
	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	controller *service.CheckoutController
}

// NewHandler creates a new HTTP handler
func NewHandler(controller *service.CheckoutController) *Handler {
	return &Handler{controller: controller}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", h.beginCheckout)
		v1.GET("/checkout/:id", h.getCheckout)
		v1.POST("/checkout/:id/submit", h.submitCheckout)
		v1.POST("/checkout/:id/gateway/success", h.gatewaySuccess)
		v1.POST("/checkout/:id/gateway/failure", h.gatewayFailure)
		v1.POST("/checkout/:id/gateway/dismiss", h.gatewayDismiss)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type beginCheckoutRequest struct {
	StudentID  string `json:"student_id" binding:"required"`
	StudentRef string `json:"student_ref,omitempty"`
}

// beginCheckout opens a new checkout session
func (h *Handler) beginCheckout(c *gin.Context) {
	var req beginCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	sess, err := h.controller.Begin(c.Request.Context(), req.StudentID, req.StudentRef)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to open checkout session",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

// getCheckout returns the session's current state
func (h *Handler) getCheckout(c *gin.Context) {
	sess, err := h.controller.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// submitCheckout validates the form, reserves the order and returns the
// widget configuration
func (h *Handler) submitCheckout(c *gin.Context) {
	var in service.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	opts, sess, err := h.controller.Submit(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.renderCheckoutError(c, sess, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":        sess,
		"widget_options": opts,
	})
}

// gatewaySuccess relays the widget's success callback
func (h *Handler) gatewaySuccess(c *gin.Context) {
	var result models.GatewayResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	sess, err := h.controller.HandleGatewaySuccess(c.Request.Context(), c.Param("id"), result)
	if err != nil {
		h.renderCheckoutError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

type gatewayFailureRequest struct {
	Reason string `json:"reason"`
}

// gatewayFailure relays the widget's failure callback
func (h *Handler) gatewayFailure(c *gin.Context) {
	var req gatewayFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	sess, err := h.controller.HandleGatewayFailure(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.renderCheckoutError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// gatewayDismiss relays the widget's dismiss callback
func (h *Handler) gatewayDismiss(c *gin.Context) {
	sess, err := h.controller.HandleDismiss(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderCheckoutError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// renderCheckoutError maps controller errors to HTTP statuses. The session
// snapshot rides along so the frontend can render the step and LastError
// without a second round trip.
func (h *Handler) renderCheckoutError(c *gin.Context, sess *models.Session, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrSessionTerminal),
		errors.Is(err, service.ErrInvalidStep),
		errors.Is(err, service.ErrOrderMismatch):
		status = http.StatusConflict
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, catalog.ErrPlanNotFound),
		errors.Is(err, backend.ErrValidationRejected):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, backend.ErrSignatureRejected):
		status = http.StatusPaymentRequired
	case errors.Is(err, backend.ErrBackendUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, gateway.ErrLoadFailed):
		status = http.StatusServiceUnavailable
	}

	body := gin.H{"error": err.Error()}
	if sess != nil {
		body["session"] = sess
	}
	c.JSON(status, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
