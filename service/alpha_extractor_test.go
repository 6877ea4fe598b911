package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestExtractAlphaFromAlphaChannel(t *testing.T) {
	img, err := gocv.NewMatFromBytes(1, 4, gocv.MatTypeCV8UC4, []byte{
		10, 20, 30, 0,
		10, 20, 30, 0,
		10, 20, 30, 255,
		10, 20, 30, 0,
	})
	require.NoError(t, err)
	defer img.Close()

	alpha, err := ExtractAlpha(img)
	require.NoError(t, err)
	defer alpha.Close()

	assert.Equal(t, gocv.MatTypeCV8U, alpha.Type())
	assert.Equal(t, []byte{0, 0, 1, 0}, alpha.ToBytes())
}

func TestExtractAlphaPartialOpacityIsForeground(t *testing.T) {
	img, err := gocv.NewMatFromBytes(1, 3, gocv.MatTypeCV8UC4, []byte{
		255, 255, 255, 1,
		0, 0, 0, 128,
		0, 0, 0, 0,
	})
	require.NoError(t, err)
	defer img.Close()

	alpha, err := ExtractAlpha(img)
	require.NoError(t, err)
	defer alpha.Close()

	assert.Equal(t, []byte{1, 1, 0}, alpha.ToBytes())
}

func TestExtractAlphaWhiteImage(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 3, 5, gocv.MatTypeCV8UC3)
	defer img.Close()

	alpha, err := ExtractAlpha(img)
	require.NoError(t, err)
	defer alpha.Close()

	assert.Equal(t, 3, alpha.Rows())
	assert.Equal(t, 5, alpha.Cols())
	assert.Equal(t, gocv.MatTypeCV8U, alpha.Type())
	assert.Zero(t, gocv.CountNonZero(alpha))
}

func TestExtractAlphaBlackImage(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 3, 5, gocv.MatTypeCV8UC3)
	defer img.Close()

	alpha, err := ExtractAlpha(img)
	require.NoError(t, err)
	defer alpha.Close()

	assert.Equal(t, 15, gocv.CountNonZero(alpha))
	for _, v := range alpha.ToBytes() {
		assert.Equal(t, byte(1), v)
	}
}

func TestExtractAlphaWhiteDeviationThreshold(t *testing.T) {
	// 偏离之和分别为 100 和 101
	img, err := gocv.NewMatFromBytes(1, 2, gocv.MatTypeCV8UC3, []byte{
		255, 255, 155,
		255, 205, 204,
	})
	require.NoError(t, err)
	defer img.Close()

	alpha, err := ExtractAlpha(img)
	require.NoError(t, err)
	defer alpha.Close()

	assert.Equal(t, []byte{0, 1}, alpha.ToBytes())
}

func TestExtractAlphaRejectsInvalidShapes(t *testing.T) {
	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 4, 4, gocv.MatTypeCV8U)
	defer gray.Close()
	alpha, err := ExtractAlpha(gray)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, gocv.Mat{}, alpha)

	float3 := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 4, 4, gocv.MatTypeCV32FC3)
	defer float3.Close()
	alpha, err = ExtractAlpha(float3)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, gocv.Mat{}, alpha)

	empty := gocv.NewMat()
	defer empty.Close()
	alpha, err = ExtractAlpha(empty)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, gocv.Mat{}, alpha)
}
