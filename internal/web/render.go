package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/logging"
)

// messageView は message.html に渡す値です。
type messageView struct {
	Title    string
	Heading  string
	Message  string
	RetryURL string
}

func renderMessage(c *gin.Context, status int, view messageView) {
	c.HTML(status, "message.html", view)
}

func notFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "404.html", nil)
}

func forbidden(c *gin.Context) {
	renderMessage(c, http.StatusForbidden, messageView{
		Title:   "Not Authorized",
		Heading: "Not authorized!",
		Message: "You must be an admin to view this page.",
	})
}

// errorPages は処理中に記録されたエラーを 500 のエラー画面として描画します。
func errorPages(base logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		log := logging.FromContext(c, base)
		for _, e := range c.Errors {
			log.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", e.Err)
		}
		if c.Writer.Written() {
			return
		}
		renderMessage(c, http.StatusInternalServerError, messageView{
			Title:   "Error",
			Heading: "Something went wrong.",
			Message: "Please try again later.",
		})
	}
}

// fail はエラーを記録して処理を中断します。
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Status(http.StatusInternalServerError)
	c.Abort()
}
