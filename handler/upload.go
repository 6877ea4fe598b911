package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/service"
	"github.com/TIANLI0/MatteKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UploadHandler struct {
	cfg            *config.Config
	redisService   *service.RedisService
	mattingService *service.MattingService
}

func NewUploadHandler(cfg *config.Config, redis *service.RedisService, matting *service.MattingService) *UploadHandler {
	return &UploadHandler{
		cfg:            cfg,
		redisService:   redis,
		mattingService: matting,
	}
}

// Alpha 上传合成图，提取alpha掩码
func (h *UploadHandler) Alpha(c *gin.Context) {
	savePath, md5, ok := h.saveUpload(c)
	if !ok {
		return
	}
	defer h.cleanup(savePath)

	ctx := context.Background()
	cachedResult, err := h.redisService.GetAlphaResult(ctx, md5)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
	}
	if cachedResult != nil {
		utils.Logger.Info("cache hit", zap.String("md5", md5))
		c.JSON(http.StatusOK, model.Response{
			Success: true,
			Message: "处理成功（来自缓存）",
			Data:    cachedResult,
		})
		return
	}

	result, err := h.mattingService.ProcessAlpha(c.Request.Context(), savePath, md5)
	if err != nil {
		h.processError(c, err)
		return
	}

	if err := h.redisService.SetAlphaResult(ctx, md5, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Message: "处理成功",
		Data:    result,
	})
}

// Trimap 上传掩码或合成图，生成三分图
func (h *UploadHandler) Trimap(c *gin.Context) {
	req, err := h.parseTrimapRequest(c.PostForm)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "参数错误",
			Error:   err.Error(),
		})
		return
	}

	savePath, md5, ok := h.saveUpload(c)
	if !ok {
		return
	}
	defer h.cleanup(savePath)

	// 随机模式每次结果不同，不走缓存
	cacheable := service.IsDeterministic(req.Mode)
	cacheKey := service.TrimapCacheKey(md5, req.Source, req.Mode)
	ctx := context.Background()

	if cacheable {
		cachedResult, err := h.redisService.GetTrimapResult(ctx, cacheKey)
		if err != nil {
			utils.Logger.Warn("failed to get cache", zap.Error(err))
		}
		if cachedResult != nil {
			utils.Logger.Info("cache hit", zap.String("cache_key", cacheKey))
			c.JSON(http.StatusOK, model.Response{
				Success: true,
				Message: "处理成功（来自缓存）",
				Data:    cachedResult,
			})
			return
		}
	}

	result, err := h.mattingService.ProcessTrimap(c.Request.Context(), savePath, md5, req)
	if err != nil {
		h.processError(c, err)
		return
	}

	if cacheable {
		if err := h.redisService.SetTrimapResult(ctx, cacheKey, result); err != nil {
			utils.Logger.Warn("failed to set cache", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Message: "处理成功",
		Data:    result,
	})
}

// GetAlpha 根据MD5获取alpha提取结果
func (h *UploadHandler) GetAlpha(c *gin.Context) {
	md5 := c.Param("md5")
	result, err := h.redisService.GetAlphaResult(context.Background(), md5)
	h.respondCached(c, result, result == nil, err)
}

// GetTrimap 根据MD5和模式参数获取三分图结果
func (h *UploadHandler) GetTrimap(c *gin.Context) {
	req, err := h.parseTrimapRequest(c.Query)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "参数错误",
			Error:   err.Error(),
		})
		return
	}

	key := service.TrimapCacheKey(c.Param("md5"), req.Source, req.Mode)
	result, err := h.redisService.GetTrimapResult(context.Background(), key)
	h.respondCached(c, result, result == nil, err)
}

func (h *UploadHandler) respondCached(c *gin.Context, result any, missing bool, err error) {
	if err != nil {
		utils.Logger.Error("failed to get cached result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return
	}

	if missing {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该图片的处理结果",
		})
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Message: "查询成功",
		Data:    result,
	})
}

// parseTrimapRequest 从表单或查询参数解析来源和模式，缺省值取自配置
func (h *UploadHandler) parseTrimapRequest(get func(string) string) (service.TrimapRequest, error) {
	source, err := service.ParseSource(get("source"))
	if err != nil {
		return service.TrimapRequest{}, err
	}

	t := h.cfg.Trimap
	params := service.ModeParams{
		BoundaryWidth: t.BoundaryWidth,
		KernelLow:     t.KernelLow,
		KernelHigh:    t.KernelHigh,
		MaxKernel:     t.MaxKernel,
	}
	fields := []struct {
		name string
		dst  *int
	}{
		{"boundary_width", &params.BoundaryWidth},
		{"kernel_low", &params.KernelLow},
		{"kernel_high", &params.KernelHigh},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(get(f.name))
		if raw == "" {
			continue
		}
		val, err := strconv.Atoi(raw)
		if err != nil {
			return service.TrimapRequest{}, fmt.Errorf("%w: %s: %v", service.ErrInvalidArgument, f.name, err)
		}
		*f.dst = val
	}

	modeName := get("mode")
	if modeName == "" {
		modeName = t.Mode
	}
	mode, err := service.ParseMode(modeName, params)
	if err != nil {
		return service.TrimapRequest{}, err
	}

	return service.TrimapRequest{Source: source, Mode: mode}, nil
}

// saveUpload 校验并保存上传文件，失败时已写入响应
func (h *UploadHandler) saveUpload(c *gin.Context) (string, string, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return "", "", false
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return "", "", false
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG",
		})
		return "", "", false
	}

	ext := filepath.Ext(file.Filename)
	filename := fmt.Sprintf("%d%s", utils.GenerateID(), ext)
	savePath := filepath.Join(h.cfg.Upload.UploadDir, filename)

	if err := c.SaveUploadedFile(file, savePath); err != nil {
		utils.Logger.Error("failed to save file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "保存文件失败",
			Error:   err.Error(),
		})
		return "", "", false
	}

	md5, err := utils.FileMD5(savePath)
	if err != nil {
		h.cleanup(savePath)
		utils.Logger.Error("failed to calculate md5", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "计算文件哈希失败",
			Error:   err.Error(),
		})
		return "", "", false
	}

	utils.Logger.Info("file uploaded",
		zap.String("filename", filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size))

	return savePath, md5, true
}

// cleanup 处理完成后删除临时文件（如果配置启用）
func (h *UploadHandler) cleanup(savePath string) {
	if !h.cfg.Trimap.CleanupTempFiles {
		return
	}
	if err := os.Remove(savePath); err != nil {
		utils.Logger.Warn("failed to delete temp file",
			zap.String("file", savePath),
			zap.Error(err))
		return
	}
	utils.Logger.Debug("temp file deleted", zap.String("file", savePath))
}

func (h *UploadHandler) processError(c *gin.Context, err error) {
	utils.Logger.Error("failed to process image", zap.Error(err))
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrInvalidArgument) {
		status = http.StatusBadRequest
	}
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: "图片处理失败",
		Error:   err.Error(),
	})
}

func (h *UploadHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}
