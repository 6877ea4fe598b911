package service

import (
	"fmt"
	"image"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// 三分图像素取值
const (
	TrimapBackground = 0
	TrimapEroded     = 127
	TrimapUnknown    = 128
	TrimapForeground = 255
)

// Trimap 三分图及本次采样的核大小（确定性模式下为0）
type Trimap struct {
	Mat          gocv.Mat
	ErodeKernel  int
	DilateKernel int
}

func (t *Trimap) Close() error {
	return t.Mat.Close()
}

// TrimapSynthesizer 根据掩码生成三分图
// 随机源由调用方注入，内部加锁，可在多个goroutine间共享
type TrimapSynthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTrimapSynthesizer 使用给定随机源创建，src为nil时按当前时间播种
func NewTrimapSynthesizer(src rand.Source) *TrimapSynthesizer {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), 0)
	}
	return &TrimapSynthesizer{rng: rand.New(src)}
}

func NewSeededTrimapSynthesizer(seed uint64) *TrimapSynthesizer {
	return NewTrimapSynthesizer(rand.NewPCG(seed, seed))
}

// Synthesize 按模式生成三分图，返回的Mat由调用方负责关闭
func (s *TrimapSynthesizer) Synthesize(mask gocv.Mat, mode Mode) (*Trimap, error) {
	if mode == nil {
		return nil, fmt.Errorf("%w: trimap mode is required", ErrInvalidArgument)
	}
	if err := mode.validate(); err != nil {
		return nil, err
	}
	if mask.Empty() {
		return nil, fmt.Errorf("%w: empty mask", ErrInvalidArgument)
	}
	if mask.Channels() != 1 {
		return nil, fmt.Errorf("%w: mask must be single-channel, got %d channels", ErrInvalidArgument, mask.Channels())
	}

	switch m := mode.(type) {
	case TrivialMode:
		return &Trimap{Mat: filledTrimap(mask.Rows(), mask.Cols(), TrimapUnknown)}, nil
	case BoundaryMode:
		return &Trimap{Mat: boundaryTrimap(mask.Rows(), mask.Cols(), m.Width)}, nil
	case MorphologicalMode:
		return s.morphological(mask, m), nil
	default:
		return nil, fmt.Errorf("%w: unsupported trimap mode %q", ErrInvalidArgument, mode.Name())
	}
}

func filledTrimap(rows, cols int, value float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, 0, 0, 0), rows, cols, gocv.MatTypeCV8U)
}

// boundaryTrimap 四周width宽的边框为背景，其余为未知
func boundaryTrimap(rows, cols, width int) gocv.Mat {
	trimap := filledTrimap(rows, cols, TrimapBackground)

	inner := image.Rectangle{
		Min: image.Pt(width, width),
		Max: image.Pt(cols-width, rows-width),
	}
	if inner.Empty() {
		return trimap
	}

	region := trimap.Region(inner)
	region.SetTo(gocv.NewScalar(TrimapUnknown, 0, 0, 0))
	region.Close()
	return trimap
}

// morphological 腐蚀区域记127，膨胀区域记128，两者相加
func (s *TrimapSynthesizer) morphological(mask gocv.Mat, mode MorphologicalMode) *Trimap {
	erodeSize, dilateSize := s.sampleKernelSizes(mode.KernelLow, mode.KernelHigh)

	binary := binarizeMask(mask)
	defer binary.Close()

	erodeKernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(erodeSize, erodeSize))
	defer erodeKernel.Close()
	dilateKernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(dilateSize, dilateSize))
	defer dilateKernel.Close()

	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(binary, &eroded, erodeKernel)

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(binary, &dilated, dilateKernel)

	trimapE := gocv.NewMat()
	defer trimapE.Close()
	gocv.Threshold(eroded, &trimapE, 0, TrimapEroded, gocv.ThresholdBinary)

	trimapD := gocv.NewMat()
	defer trimapD.Close()
	gocv.Threshold(dilated, &trimapD, 0, TrimapUnknown, gocv.ThresholdBinary)

	sum := gocv.NewMat()
	gocv.Add(trimapD, trimapE, &sum)

	if n := CountAnomalous(sum); n > 0 {
		utils.Logger.Warn("eroded pixels outside dilated region",
			zap.Int("pixels", n),
			zap.Int("erode_kernel", erodeSize),
			zap.Int("dilate_kernel", dilateSize))
	}

	return &Trimap{Mat: sum, ErodeKernel: erodeSize, DilateKernel: dilateSize}
}

// sampleKernelSizes 在[low, high)内独立采样腐蚀、膨胀核边长
func (s *TrimapSynthesizer) sampleKernelSizes(low, high int) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	erode := low + s.rng.IntN(high-low)
	dilate := low + s.rng.IntN(high-low)
	return erode, dilate
}

// binarizeMask 将任意数值类型的单通道掩码转为0/1的CV8U
func binarizeMask(mask gocv.Mat) gocv.Mat {
	binary := gocv.NewMat()
	if mask.Type() == gocv.MatTypeCV8U {
		gocv.Threshold(mask, &binary, 0, 1, gocv.ThresholdBinary)
		return binary
	}

	wide := gocv.NewMat()
	defer wide.Close()
	mask.ConvertTo(&wide, gocv.MatTypeCV32F)

	thresholded := gocv.NewMat()
	defer thresholded.Close()
	gocv.Threshold(wide, &thresholded, 0, 1, gocv.ThresholdBinary)
	thresholded.ConvertTo(&binary, gocv.MatTypeCV8U)
	return binary
}

// CountAnomalous 统计只在腐蚀区域、不在膨胀区域的像素（值为127）
func CountAnomalous(trimap gocv.Mat) int {
	return countValue(trimap, TrimapEroded)
}

// ComputeTrimapStats 统计三分图各取值的像素数
func ComputeTrimapStats(trimap gocv.Mat) model.TrimapStats {
	return model.TrimapStats{
		Background: countValue(trimap, TrimapBackground),
		Eroded:     countValue(trimap, TrimapEroded),
		Unknown:    countValue(trimap, TrimapUnknown),
		Foreground: countValue(trimap, TrimapForeground),
	}
}

func countValue(m gocv.Mat, value float64) int {
	hit := gocv.NewMat()
	defer hit.Close()
	bound := gocv.NewScalar(value, 0, 0, 0)
	gocv.InRangeWithScalar(m, bound, bound, &hit)
	return gocv.CountNonZero(hit)
}
