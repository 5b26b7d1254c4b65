package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Upload *UploadHandler
	Query  *QueryHandler
	Index  *IndexHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/", deps.Index.Root)
	api.GET("/health", deps.Index.Health)

	api.POST("/upload", deps.Upload.Upload)
	api.GET("/query", deps.Query.Query)
	api.GET("/documents", deps.Query.Documents)

	api.GET("/chunks", deps.Index.Chunks)
	api.GET("/stats", deps.Index.Stats)
}
