package service

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrInvalidArgument 参数或输入形状不满足前置条件
var ErrInvalidArgument = errors.New("invalid argument")

// 合成图中偏离纯白的阈值
const whiteDeviationThreshold = 100

// ExtractAlpha 从合成图像中提取二值alpha掩码 (0/1)
// 出错时返回零值Mat，无需关闭
func ExtractAlpha(img gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.Mat{}, fmt.Errorf("%w: empty image", ErrInvalidArgument)
	}

	switch img.Type() {
	case gocv.MatTypeCV8UC4:
		return alphaFromChannel(img), nil
	case gocv.MatTypeCV8UC3:
		return alphaFromWhiteDeviation(img), nil
	default:
		return gocv.Mat{}, fmt.Errorf("%w: expected 8-bit image with 3 or 4 channels, got %d channels (type %v)",
			ErrInvalidArgument, img.Channels(), img.Type())
	}
}

// alphaFromChannel 取第4通道，大于0即为前景
func alphaFromChannel(img gocv.Mat) gocv.Mat {
	channels := gocv.Split(img)
	defer closeAll(channels)

	alpha := gocv.NewMat()
	gocv.Threshold(channels[3], &alpha, 0, 1, gocv.ThresholdBinary)
	return alpha
}

// alphaFromWhiteDeviation 无alpha通道时，按各通道偏离255的总和推断前景
func alphaFromWhiteDeviation(img gocv.Mat) gocv.Mat {
	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(img, &inverted)

	wide := gocv.NewMat()
	defer wide.Close()
	inverted.ConvertTo(&wide, gocv.MatTypeCV32F)

	channels := gocv.Split(wide)
	defer closeAll(channels)

	sum := gocv.NewMat()
	defer sum.Close()
	gocv.Add(channels[0], channels[1], &sum)
	gocv.Add(sum, channels[2], &sum)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(sum, &binary, whiteDeviationThreshold, 1, gocv.ThresholdBinary)

	alpha := gocv.NewMat()
	binary.ConvertTo(&alpha, gocv.MatTypeCV8U)
	return alpha
}

func closeAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
