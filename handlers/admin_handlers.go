package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"mocktest-server/models"
	"mocktest-server/store"
)

// RecentEventsFunc loads the most recent adapter events for display.
// main wires it to the adapter_events table.
type RecentEventsFunc func(limit int) ([]models.AdapterEvent, error)

// AdminDashboard renders the admin dashboard with totals and recent
// adapter activity.
// GET /admin/dashboard
func AdminDashboard(st store.Store, recentEvents RecentEventsFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, submitted, questions, err := st.Counts(c.Request.Context())
		if err != nil {
			log.Printf("Error fetching dashboard counts: %v", err)
		}

		events, err := recentEvents(10)
		if err != nil {
			log.Printf("Error fetching recent adapter events: %v", err)
		}

		c.HTML(http.StatusOK, "admin_dashboard", gin.H{
			"Title":          "MockTest Admin Dashboard",
			"TotalSessions":  sessions,
			"TotalSubmitted": submitted,
			"TotalQuestions": questions,
			"RecentEvents":   events,
			"UserEmail":      c.GetString("user_email"),
		})
	}
}
