package service

import (
	"fmt"
	"strings"
)

// Mode 三分图生成策略，只能是下面三种之一
type Mode interface {
	Name() string
	validate() error
}

// TrivialMode 整幅图都标记为未知区域
type TrivialMode struct{}

// BoundaryMode 只有固定宽度的边框是确定背景
type BoundaryMode struct {
	Width int
}

// MorphologicalMode 随机核大小的腐蚀/膨胀
type MorphologicalMode struct {
	KernelLow  int
	KernelHigh int
}

const (
	ModeTrivial       = "trivial"
	ModeBoundary      = "boundary"
	ModeMorphological = "morphological"
)

// ModeParams 解析模式时使用的数值参数
type ModeParams struct {
	BoundaryWidth int
	KernelLow     int
	KernelHigh    int
	MaxKernel     int // 0 表示不限制
}

func DefaultModeParams() ModeParams {
	return ModeParams{
		BoundaryWidth: 50,
		KernelLow:     25,
		KernelHigh:    75,
	}
}

func (TrivialMode) Name() string { return ModeTrivial }
func (BoundaryMode) Name() string { return ModeBoundary }
func (MorphologicalMode) Name() string { return ModeMorphological }

func (TrivialMode) validate() error { return nil }

func (m BoundaryMode) validate() error {
	if m.Width <= 0 {
		return fmt.Errorf("%w: boundary width must be positive, got %d", ErrInvalidArgument, m.Width)
	}
	return nil
}

func (m MorphologicalMode) validate() error {
	if m.KernelLow <= 0 || m.KernelHigh <= 0 {
		return fmt.Errorf("%w: kernel sizes must be positive, got [%d, %d)", ErrInvalidArgument, m.KernelLow, m.KernelHigh)
	}
	if m.KernelLow >= m.KernelHigh {
		return fmt.Errorf("%w: kernel_low must be less than kernel_high, got [%d, %d)", ErrInvalidArgument, m.KernelLow, m.KernelHigh)
	}
	return nil
}

func NewBoundaryMode(width int) (BoundaryMode, error) {
	m := BoundaryMode{Width: width}
	return m, m.validate()
}

func NewMorphologicalMode(low, high int) (MorphologicalMode, error) {
	m := MorphologicalMode{KernelLow: low, KernelHigh: high}
	return m, m.validate()
}

// ParseMode 根据名称构造模式，未知名称直接拒绝
func ParseMode(name string, params ModeParams) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ModeTrivial:
		return TrivialMode{}, nil
	case ModeBoundary:
		m, err := NewBoundaryMode(params.BoundaryWidth)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ModeMorphological, "mask":
		if params.MaxKernel > 0 && params.KernelHigh > params.MaxKernel {
			return nil, fmt.Errorf("%w: kernel_high %d exceeds limit %d", ErrInvalidArgument, params.KernelHigh, params.MaxKernel)
		}
		m, err := NewMorphologicalMode(params.KernelLow, params.KernelHigh)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown trimap mode %q", ErrInvalidArgument, name)
	}
}

// ModeKey 缓存键中使用的模式描述
func ModeKey(m Mode) string {
	switch v := m.(type) {
	case BoundaryMode:
		return fmt.Sprintf("%s:%d", v.Name(), v.Width)
	case MorphologicalMode:
		return fmt.Sprintf("%s:%d-%d", v.Name(), v.KernelLow, v.KernelHigh)
	default:
		return m.Name()
	}
}

// IsDeterministic 模式输出是否与随机源无关
func IsDeterministic(m Mode) bool {
	_, random := m.(MorphologicalMode)
	return !random
}
