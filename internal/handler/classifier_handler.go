package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"wordclass-go/internal/service"
	"wordclass-go/pkg/errs"
	"wordclass-go/pkg/log"
)

// ClassifierHandler 负责服务端训练、评估、保存、加载与预测的 API。
type ClassifierHandler struct {
	classifierService service.ClassifierService
}

// NewClassifierHandler 创建一个新的 ClassifierHandler 实例。
func NewClassifierHandler(classifierService service.ClassifierService) *ClassifierHandler {
	return &ClassifierHandler{classifierService: classifierService}
}

// respondError 按错误类别选择状态码，训练冲突返回 409。
func respondError(c *gin.Context, op string, err error) {
	status := errs.HTTPStatus(err)
	if service.IsTrainingInProgress(err) {
		status = http.StatusConflict
	}
	if status >= http.StatusInternalServerError {
		log.Error(op+": request failed", err)
	} else {
		log.Warnf("%s: %v", op, err)
	}
	c.JSON(status, gin.H{"code": status, "message": err.Error(), "data": nil})
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

// Train 派发一个训练任务，请求体可以为空。
func (h *ClassifierHandler) Train(c *gin.Context) {
	var req service.TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Warnf("Train: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	task, err := h.classifierService.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Train", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "训练任务已提交", "data": task})
}

// Status 返回会话当前状态。
func (h *ClassifierHandler) Status(c *gin.Context) {
	respondOK(c, h.classifierService.Status())
}

// Evaluate 在已加载的语料上评估当前模型。
func (h *ClassifierHandler) Evaluate(c *gin.Context) {
	eval, err := h.classifierService.Evaluate(c.Request.Context())
	if err != nil {
		respondError(c, "Evaluate", err)
		return
	}
	respondOK(c, eval)
}

// Predict 使用训练好的模型预测。
func (h *ClassifierHandler) Predict(c *gin.Context) {
	var req service.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Predict: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	p, err := h.classifierService.Predict(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Predict", err)
		return
	}
	respondOK(c, p)
}

// Save 保存模型；元数据写入失败时仍返回 200，警告放在 data.warning 中。
func (h *ClassifierHandler) Save(c *gin.Context) {
	report, err := h.classifierService.Save(c.Request.Context())
	if err != nil {
		respondError(c, "Save", err)
		return
	}
	respondOK(c, report)
}

// Load 从存储恢复模型。
func (h *ClassifierHandler) Load(c *gin.Context) {
	runID, err := h.classifierService.Load(c.Request.Context())
	if err != nil {
		respondError(c, "Load", err)
		return
	}
	respondOK(c, gin.H{"runId": runID})
}
