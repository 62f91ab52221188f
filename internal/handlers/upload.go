package handlers

import (
	"net/http"

	"nva-backoffice/internal/services"

	"github.com/gin-gonic/gin"
)

// formUpload opens the multipart file under field. The caller must run the
// returned close func once the upload has been consumed.
func formUpload(c *gin.Context, field string) (services.Upload, func(), bool) {
	// Get uploaded file
	header, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": map[string]string{field: "is required"}})
		return services.Upload{}, nil, false
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return services.Upload{}, nil, false
	}
	closeFn := func() { _ = file.Close() }
	return services.Upload{Filename: header.Filename, Size: header.Size, Body: file}, closeFn, true
}
