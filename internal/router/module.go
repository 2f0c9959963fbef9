package router

import "github.com/gin-gonic/gin"

// Module is one feature area's route set. Modules register themselves on
// the shared /api group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
