package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lg/fitplan-api/internal/ack"
)

// getMetrics returns the latest computed targets and whether they still need
// acknowledging.
// GET /api/metrics. 404 until targets have been computed once.
func (h *Handler) getMetrics(c *gin.Context) {
	userID := c.GetInt("user_id")

	st, err := h.acks.Status(c, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// acknowledgeMetrics records that the user saw a metrics version.
// POST /api/metrics/acknowledge. Body: { "version": 2, "computed_at": "2025-10-01T09:30:00.123Z" }.
// computed_at is the value served by GET /api/metrics; it matches to the second.
func (h *Handler) acknowledgeMetrics(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body acknowledgeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.acks.Acknowledge(c, ack.Request{UserID: userID, Version: body.Version, ComputedAt: body.ComputedAt})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
