package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getProfile returns the health profile and current targets of the
// authenticated user.
// GET /api/profile.
func (h *Handler) getProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	s, err := h.store.GetUserSettings(c, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// patchProfile updates only the provided profile fields.
// PATCH /api/profile. A profile edit does not touch this week's plan; the
// client regenerates with force_recompute or waits for the weekly recompute.
func (h *Handler) patchProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body patchProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := body.validate(h.now()); err != nil {
		h.respondError(c, err)
		return
	}
	patch := body.patch()
	if patch.Empty() {
		apiError(c, http.StatusBadRequest, "no fields to update")
		return
	}

	s, err := h.store.UpdateProfile(c, userID, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
