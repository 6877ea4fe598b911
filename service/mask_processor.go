package service

import (
	"encoding/base64"
	"fmt"

	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// MaskProcessor 负责掩码/三分图的编码与统计
type MaskProcessor struct{}

func NewMaskProcessor() *MaskProcessor {
	return &MaskProcessor{}
}

// Visualize 将0/1掩码拉伸为0/255，便于查看
func (mp *MaskProcessor) Visualize(mask gocv.Mat) gocv.Mat {
	visible := gocv.NewMat()
	gocv.Threshold(mask, &visible, 0, 255, gocv.ThresholdBinary)
	return visible
}

// EncodePNG 将单通道图编码为Base64 PNG
func (mp *MaskProcessor) EncodePNG(m gocv.Mat) string {
	data, err := gocv.IMEncode(gocv.PNGFileExt, m)
	if err != nil {
		utils.Logger.Error("failed to encode png", zap.Error(err))
		return ""
	}
	defer data.Close()

	return base64.StdEncoding.EncodeToString(data.GetBytes())
}

// EncodeMask 可视化后编码掩码
func (mp *MaskProcessor) EncodeMask(mask gocv.Mat) string {
	visible := mp.Visualize(mask)
	defer visible.Close()
	return mp.EncodePNG(visible)
}

// Coverage 前景像素占比
func (mp *MaskProcessor) Coverage(mask gocv.Mat) float64 {
	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}

// WritePNG 将三分图写入磁盘
func (mp *MaskProcessor) WritePNG(path string, m gocv.Mat) error {
	if ok := gocv.IMWrite(path, m); !ok {
		return fmt.Errorf("failed to write image: %s", path)
	}
	return nil
}
