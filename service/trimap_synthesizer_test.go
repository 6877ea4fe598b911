package service

import (
	"image"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// squareMask 在rows*cols的掩码中放置一个值为value的正方形
func squareMask(t *testing.T, rows, cols int, square image.Rectangle, value float64, mt gocv.MatType) gocv.Mat {
	t.Helper()
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, mt)
	region := mask.Region(square)
	region.SetTo(gocv.NewScalar(value, 0, 0, 0))
	region.Close()
	return mask
}

func TestSynthesizeTrivial(t *testing.T) {
	mask := squareMask(t, 6, 8, image.Rect(2, 2, 4, 4), 1, gocv.MatTypeCV8U)
	defer mask.Close()

	trimap, err := NewSeededTrimapSynthesizer(1).Synthesize(mask, TrivialMode{})
	require.NoError(t, err)
	defer trimap.Close()

	assert.Equal(t, 6, trimap.Mat.Rows())
	assert.Equal(t, 8, trimap.Mat.Cols())
	assert.Equal(t, gocv.MatTypeCV8U, trimap.Mat.Type())
	assert.Equal(t, 48, ComputeTrimapStats(trimap.Mat).Unknown)
	assert.Zero(t, trimap.ErodeKernel)
	assert.Zero(t, trimap.DilateKernel)
}

func TestSynthesizeBoundary(t *testing.T) {
	const rows, cols, width = 10, 12, 2
	mask := squareMask(t, rows, cols, image.Rect(4, 4, 8, 8), 1, gocv.MatTypeCV8U)
	defer mask.Close()

	s := NewSeededTrimapSynthesizer(1)
	trimap, err := s.Synthesize(mask, BoundaryMode{Width: width})
	require.NoError(t, err)
	defer trimap.Close()

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			border := y < width || y >= rows-width || x < width || x >= cols-width
			want := uint8(TrimapUnknown)
			if border {
				want = TrimapBackground
			}
			assert.Equal(t, want, trimap.Mat.GetUCharAt(y, x), "pixel (%d, %d)", x, y)
		}
	}

	again, err := s.Synthesize(mask, BoundaryMode{Width: width})
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, trimap.Mat.ToBytes(), again.Mat.ToBytes())
}

func TestSynthesizeBoundaryWiderThanImage(t *testing.T) {
	mask := squareMask(t, 10, 12, image.Rect(4, 4, 8, 8), 1, gocv.MatTypeCV8U)
	defer mask.Close()

	trimap, err := NewSeededTrimapSynthesizer(1).Synthesize(mask, BoundaryMode{Width: 5})
	require.NoError(t, err)
	defer trimap.Close()

	assert.Zero(t, gocv.CountNonZero(trimap.Mat))
}

func TestSynthesizeMorphologicalFixedKernel(t *testing.T) {
	// 4x4 前景块，3x3 核：腐蚀后剩 2x2，膨胀后为 6x6
	mask := squareMask(t, 10, 10, image.Rect(3, 3, 7, 7), 1, gocv.MatTypeCV8U)
	defer mask.Close()

	trimap, err := NewSeededTrimapSynthesizer(7).Synthesize(mask, MorphologicalMode{KernelLow: 3, KernelHigh: 4})
	require.NoError(t, err)
	defer trimap.Close()

	assert.Equal(t, 3, trimap.ErodeKernel)
	assert.Equal(t, 3, trimap.DilateKernel)

	stats := ComputeTrimapStats(trimap.Mat)
	assert.Equal(t, 4, stats.Foreground)
	assert.Equal(t, 32, stats.Unknown)
	assert.Equal(t, 64, stats.Background)
	assert.Zero(t, stats.Eroded)

	assert.Equal(t, uint8(TrimapForeground), trimap.Mat.GetUCharAt(4, 4))
	assert.Equal(t, uint8(TrimapUnknown), trimap.Mat.GetUCharAt(2, 2))
	assert.Equal(t, uint8(TrimapBackground), trimap.Mat.GetUCharAt(0, 0))
}

func TestSynthesizeMorphologicalMonotonic(t *testing.T) {
	mask := squareMask(t, 60, 60, image.Rect(20, 20, 40, 40), 1, gocv.MatTypeCV8U)
	defer mask.Close()
	maskPixels := gocv.CountNonZero(mask)

	s := NewSeededTrimapSynthesizer(42)
	mode := MorphologicalMode{KernelLow: 3, KernelHigh: 9}
	for i := 0; i < 10; i++ {
		trimap, err := s.Synthesize(mask, mode)
		require.NoError(t, err)

		stats := ComputeTrimapStats(trimap.Mat)
		assert.Zero(t, stats.Eroded)
		assert.Zero(t, CountAnomalous(trimap.Mat))
		assert.Equal(t, 3600, stats.Background+stats.Unknown+stats.Foreground)
		assert.LessOrEqual(t, stats.Foreground, maskPixels)
		assert.GreaterOrEqual(t, stats.Foreground+stats.Unknown, maskPixels)

		assert.GreaterOrEqual(t, trimap.ErodeKernel, mode.KernelLow)
		assert.Less(t, trimap.ErodeKernel, mode.KernelHigh)
		assert.GreaterOrEqual(t, trimap.DilateKernel, mode.KernelLow)
		assert.Less(t, trimap.DilateKernel, mode.KernelHigh)
		trimap.Close()
	}
}

func TestSynthesizeMorphologicalThinMaskHasNoForeground(t *testing.T) {
	mask := squareMask(t, 20, 20, image.Rect(0, 10, 20, 11), 1, gocv.MatTypeCV8U)
	defer mask.Close()

	trimap, err := NewSeededTrimapSynthesizer(3).Synthesize(mask, MorphologicalMode{KernelLow: 3, KernelHigh: 5})
	require.NoError(t, err)
	defer trimap.Close()

	stats := ComputeTrimapStats(trimap.Mat)
	assert.Zero(t, stats.Foreground)
	assert.Zero(t, stats.Eroded)
	assert.Positive(t, stats.Unknown)
}

func TestSynthesizeMorphologicalKernelsVary(t *testing.T) {
	mask := squareMask(t, 32, 32, image.Rect(8, 8, 24, 24), 1, gocv.MatTypeCV8U)
	defer mask.Close()

	s := NewSeededTrimapSynthesizer(2024)
	seen := make(map[[2]int]bool)
	for i := 0; i < 20; i++ {
		trimap, err := s.Synthesize(mask, MorphologicalMode{KernelLow: 3, KernelHigh: 15})
		require.NoError(t, err)
		assert.Equal(t, mask.Rows(), trimap.Mat.Rows())
		assert.Equal(t, mask.Cols(), trimap.Mat.Cols())
		seen[[2]int{trimap.ErodeKernel, trimap.DilateKernel}] = true
		trimap.Close()
	}
	assert.Greater(t, len(seen), 1)
}

func TestSynthesizeMorphologicalSeedReproducible(t *testing.T) {
	mask := squareMask(t, 40, 40, image.Rect(10, 10, 30, 30), 1, gocv.MatTypeCV8U)
	defer mask.Close()
	mode := MorphologicalMode{KernelLow: 3, KernelHigh: 12}

	a, err := NewSeededTrimapSynthesizer(99).Synthesize(mask, mode)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSeededTrimapSynthesizer(99).Synthesize(mask, mode)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, a.ErodeKernel, b.ErodeKernel)
	assert.Equal(t, a.DilateKernel, b.DilateKernel)
	assert.Equal(t, a.Mat.ToBytes(), b.Mat.ToBytes())
}

func TestSynthesizeAcceptsRawAndFloatMasks(t *testing.T) {
	square := image.Rect(10, 10, 30, 30)
	mode := MorphologicalMode{KernelLow: 3, KernelHigh: 12}

	binary := squareMask(t, 40, 40, square, 1, gocv.MatTypeCV8U)
	defer binary.Close()
	raw := squareMask(t, 40, 40, square, 255, gocv.MatTypeCV8U)
	defer raw.Close()
	float := squareMask(t, 40, 40, square, 0.25, gocv.MatTypeCV32F)
	defer float.Close()

	want, err := NewSeededTrimapSynthesizer(5).Synthesize(binary, mode)
	require.NoError(t, err)
	defer want.Close()

	for name, mask := range map[string]gocv.Mat{"raw": raw, "float": float} {
		got, err := NewSeededTrimapSynthesizer(5).Synthesize(mask, mode)
		require.NoError(t, err, name)
		assert.Equal(t, want.Mat.ToBytes(), got.Mat.ToBytes(), name)
		got.Close()
	}
}

func TestSynthesizeRejectsInvalidInput(t *testing.T) {
	s := NewSeededTrimapSynthesizer(1)
	mask := squareMask(t, 10, 10, image.Rect(3, 3, 7, 7), 1, gocv.MatTypeCV8U)
	defer mask.Close()

	color := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 10, 10, gocv.MatTypeCV8UC3)
	defer color.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	cases := []struct {
		name string
		mask gocv.Mat
		mode Mode
	}{
		{"nil mode", mask, nil},
		{"zero boundary", mask, BoundaryMode{Width: 0}},
		{"negative kernel", mask, MorphologicalMode{KernelLow: -1, KernelHigh: 5}},
		{"empty range", mask, MorphologicalMode{KernelLow: 5, KernelHigh: 5}},
		{"multi channel", color, TrivialMode{}},
		{"empty mask", empty, TrivialMode{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Synthesize(tc.mask, tc.mode)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestSynthesizerConcurrentUse(t *testing.T) {
	mask := squareMask(t, 32, 32, image.Rect(8, 8, 24, 24), 1, gocv.MatTypeCV8U)
	defer mask.Close()

	s := NewTrimapSynthesizer(rand.NewPCG(1, 2))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trimap, err := s.Synthesize(mask, MorphologicalMode{KernelLow: 3, KernelHigh: 7})
			if assert.NoError(t, err) {
				assert.Zero(t, CountAnomalous(trimap.Mat))
				trimap.Close()
			}
		}()
	}
	wg.Wait()
}
