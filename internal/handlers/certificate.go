package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCertificate renders the certificate of a completed room as HTML,
// Markdown (?format=markdown) or JSON (?format=json).
func (h *RoomHandler) GetCertificate(c *gin.Context) {
	cert, err := h.roomService.Certificate(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		writeError(c, err)
		return
	}

	switch c.Query("format") {
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(cert.Markdown()))
	case "json":
		c.JSON(http.StatusOK, cert)
	default:
		page, err := cert.HTML()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	}
}
