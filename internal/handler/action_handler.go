// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"wordclass-go/internal/service"
	"wordclass-go/pkg/log"
)

// ActionHandler 负责单一动作接口：请求体中的 action 字段决定执行哪个网关操作。
type ActionHandler struct {
	gatewayService service.GatewayService
}

// NewActionHandler 创建一个新的 ActionHandler 实例。
func NewActionHandler(gatewayService service.GatewayService) *ActionHandler {
	return &ActionHandler{gatewayService: gatewayService}
}

// Handle 处理动作请求。业务错误一律以 200 + status=error 返回，只有非 POST 与无法解析的请求体使用其他状态码。
func (h *ActionHandler) Handle(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"status": service.StatusError, "message": "Only POST requests are allowed"})
		return
	}

	var req service.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("ActionHandler: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": service.StatusError, "message": "Invalid JSON request body"})
		return
	}

	resp := h.gatewayService.Dispatch(c.Request.Context(), req)
	c.JSON(http.StatusOK, resp)
}
