package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// getCurrentPlan returns this week's active plan without computing anything.
// GET /api/plans/current. 404 when no plan has been generated this week.
func (h *Handler) getCurrentPlan(c *gin.Context) {
	userID := c.GetInt("user_id")

	res, err := h.plans.Current(c, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// generatePlan returns this week's plan, creating it if needed.
// POST /api/plans/generate. Body (optional): { "force_recompute": true }.
// 201 when a plan was created, 200 when an existing plan was returned.
func (h *Handler) generatePlan(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body generatePlanRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.plans.Generate(c.Request.Context(), userID, body.ForceRecompute)
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if res.Recomputed {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}
