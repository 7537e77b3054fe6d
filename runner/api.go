package runner

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewAPI registers the control and stats endpoints of a run on g.
func NewAPI(r *Runner, l *slog.Logger, g *gin.Engine) {
	g.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, r.Stats())
	})

	g.GET("/feed", func(c *gin.Context) {
		c.JSON(http.StatusOK, r.Feed())
	})

	g.GET("/proxies", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"total":  r.proxies.Total(),
			"active": r.proxies.Active(),
		})
	})

	g.POST("/pause", control(l, "paused", r.Pause))
	g.POST("/resume", control(l, "resumed", r.Resume))
	g.POST("/stop", control(l, "stopped", r.Stop))
}

func control(l *slog.Logger, state string, action func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		action()
		l.InfoContext(c.Request.Context(), "Runner "+state,
			"remote", c.ClientIP())
		c.JSON(http.StatusOK, gin.H{"status": state})
	}
}
