package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// 三分图输入来源
const (
	SourceMask  = "mask"  // 直接读取单通道掩码
	SourceImage = "image" // 先从合成图中提取alpha
)

// ParseSource 解析输入来源，空值默认为mask
func ParseSource(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", SourceMask:
		return SourceMask, nil
	case SourceImage:
		return SourceImage, nil
	default:
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalidArgument, s)
	}
}

// TrimapRequest 单次三分图生成请求
type TrimapRequest struct {
	Source string
	Mode   Mode
}

// MattingService 负责alpha提取与三分图生成
type MattingService struct {
	semaphore     chan struct{}
	queueTimeout  time.Duration
	synthesizer   *TrimapSynthesizer
	maskProcessor *MaskProcessor
}

func NewMattingService(cfg *config.TrimapConfig) *MattingService {
	synthesizer := NewTrimapSynthesizer(nil)
	if cfg.Seed != 0 {
		synthesizer = NewSeededTrimapSynthesizer(cfg.Seed)
	}

	return &MattingService{
		semaphore:     make(chan struct{}, cfg.MaxConcurrent),
		queueTimeout:  time.Duration(cfg.QueueTimeout) * time.Second,
		synthesizer:   synthesizer,
		maskProcessor: NewMaskProcessor(),
	}
}

// acquire 并发控制，超过排队时间返回错误
func (s *MattingService) acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		return func() { <-s.semaphore }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("处理队列已满，请稍后重试")
	}
}

// LoadMask 按来源读取掩码，出错时返回零值Mat，无需关闭
func (s *MattingService) LoadMask(path, source string) (gocv.Mat, error) {
	if source == SourceImage {
		img := gocv.IMRead(path, gocv.IMReadUnchanged)
		defer img.Close()
		if img.Empty() {
			return gocv.Mat{}, fmt.Errorf("failed to read image: %s", path)
		}
		return ExtractAlpha(img)
	}

	mask := gocv.IMRead(path, gocv.IMReadGrayScale)
	if mask.Empty() {
		mask.Close()
		return gocv.Mat{}, fmt.Errorf("failed to read mask: %s", path)
	}
	return mask, nil
}

// ProcessAlpha 从图片中提取alpha掩码
func (s *MattingService) ProcessAlpha(ctx context.Context, imagePath, md5 string) (*model.AlphaResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	startTime := time.Now()

	img := gocv.IMRead(imagePath, gocv.IMReadUnchanged)
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("failed to read image")
	}

	utils.Logger.Info("extracting alpha",
		zap.String("md5", md5),
		zap.Int("width", img.Cols()),
		zap.Int("height", img.Rows()),
		zap.Int("channels", img.Channels()))

	alpha, err := ExtractAlpha(img)
	if err != nil {
		return nil, err
	}
	defer alpha.Close()

	result := &model.AlphaResult{
		MD5:       md5,
		Width:     img.Cols(),
		Height:    img.Rows(),
		Channels:  img.Channels(),
		Mask:      s.maskProcessor.EncodeMask(alpha),
		Coverage:  s.maskProcessor.Coverage(alpha),
		Timestamp: time.Now().Unix(),
	}

	utils.Logger.Info("alpha extracted",
		zap.String("md5", md5),
		zap.Duration("duration", time.Since(startTime)),
		zap.Float64("coverage", result.Coverage))

	return result, nil
}

// ProcessTrimap 生成三分图并返回结果
func (s *MattingService) ProcessTrimap(ctx context.Context, imagePath, md5 string, req TrimapRequest) (*model.TrimapResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	startTime := time.Now()

	mask, err := s.LoadMask(imagePath, req.Source)
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	trimap, err := s.synthesizer.Synthesize(mask, req.Mode)
	if err != nil {
		return nil, err
	}
	defer trimap.Close()

	result := &model.TrimapResult{
		MD5:          md5,
		Width:        mask.Cols(),
		Height:       mask.Rows(),
		Source:       req.Source,
		Mode:         req.Mode.Name(),
		ErodeKernel:  trimap.ErodeKernel,
		DilateKernel: trimap.DilateKernel,
		Stats:        ComputeTrimapStats(trimap.Mat),
		Trimap:       s.maskProcessor.EncodePNG(trimap.Mat),
		Timestamp:    time.Now().Unix(),
	}

	utils.Logger.Info("trimap generated",
		zap.String("md5", md5),
		zap.String("mode", result.Mode),
		zap.Int("erode_kernel", result.ErodeKernel),
		zap.Int("dilate_kernel", result.DilateKernel),
		zap.Duration("duration", time.Since(startTime)))

	return result, nil
}

// GenerateTrimapFile 读取输入、生成三分图并写入outPath
func (s *MattingService) GenerateTrimapFile(ctx context.Context, inPath, outPath string, req TrimapRequest) (model.TrimapStats, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return model.TrimapStats{}, err
	}
	defer release()

	mask, err := s.LoadMask(inPath, req.Source)
	if err != nil {
		return model.TrimapStats{}, err
	}
	defer mask.Close()

	trimap, err := s.synthesizer.Synthesize(mask, req.Mode)
	if err != nil {
		return model.TrimapStats{}, fmt.Errorf("%s: %w", inPath, err)
	}
	defer trimap.Close()

	if err := s.maskProcessor.WritePNG(outPath, trimap.Mat); err != nil {
		return model.TrimapStats{}, err
	}
	return ComputeTrimapStats(trimap.Mat), nil
}
