package handler

import (
	"github.com/gin-gonic/gin"
	"wordclass-go/internal/middleware"
	"wordclass-go/internal/service"
)

// NewRouter 创建路由引擎并注册全部路由。classifierService 为 nil 时只提供动作接口。
func NewRouter(gatewayService service.GatewayService, classifierService service.ClassifierService) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 动作接口接受任意方法，由处理函数拒绝非 POST 请求
	action := NewActionHandler(gatewayService)
	r.Any("/api", action.Handle)
	r.Any("/api.php", action.Handle)

	if classifierService == nil {
		return r
	}
	classifierHandler := NewClassifierHandler(classifierService)
	progressHandler := NewProgressHandler(classifierService.Progress())

	apiV1 := r.Group("/api/v1")
	{
		cls := apiV1.Group("/classifier")
		{
			cls.POST("/train", classifierHandler.Train)
			cls.GET("/status", classifierHandler.Status)
			cls.POST("/evaluate", classifierHandler.Evaluate)
			cls.POST("/predict", classifierHandler.Predict)
			cls.POST("/save", classifierHandler.Save)
			cls.POST("/load", classifierHandler.Load)
			cls.GET("/progress", progressHandler.Handle(func() any { return classifierService.Status() }))
		}
	}
	return r
}
