package users

import (
	"net/http"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/db"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/models"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// connectedUserID extracts and checks the user id placed in the context by
// the JWT middleware. The claim is a free-form string, so its format is
// checked before it reaches a query.
func connectedUserID(c *gin.Context) (string, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}

	userID, ok := raw.(string)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}

	if _, err := uuid.Parse(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return "", false
	}

	return userID, true
}

// GetMe returns the connected user's profile and subscription snapshot
// @Summary Current user
// @Description Return the connected user's profile including the current subscription snapshot
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} map[string]string "error: Unauthorized"
// @Failure 404 {object} map[string]string "error: User not found"
// @Router /users/me [get]
// @Router /subscriptions/me [get]
func GetMe(c *gin.Context) {
	userID, ok := connectedUserID(c)
	if !ok {
		return
	}

	var user models.User
	if err := db.DB.First(&user, "id = ?", userID).Error; err != nil {
		utils.LogErrorWithUser(userID, err, "User not found in GetMe")
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetSubscriptionHistory returns the audit trail for the connected user
// @Summary Subscription event history
// @Description Return the processed webhook events that touched this account, most recent first
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.SubscriptionEvent
// @Failure 401 {object} map[string]string "error: Unauthorized"
// @Router /users/me/subscription-events [get]
func GetSubscriptionHistory(c *gin.Context) {
	userID, ok := connectedUserID(c)
	if !ok {
		return
	}

	var events []models.SubscriptionEvent
	if err := db.DB.Where("user_id = ?", userID).Order("event_at DESC").Find(&events).Error; err != nil {
		utils.LogErrorWithUser(userID, err, "Error fetching subscription events in GetSubscriptionHistory")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching subscription events"})
		return
	}

	c.JSON(http.StatusOK, events)
}
