package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
)

// BatchOptions 批量生成参数
type BatchOptions struct {
	OutputDir      string
	Mode           Mode
	Parallel       int
	FromForeground bool // 没有掩码时从前景图提取alpha
}

// BatchGenerator 按数据集索引批量生成三分图
type BatchGenerator struct {
	matting *MattingService
}

func NewBatchGenerator(matting *MattingService) *BatchGenerator {
	return &BatchGenerator{matting: matting}
}

// Run 处理所有条目，单条失败不会中断其余条目
func (g *BatchGenerator) Run(ctx context.Context, entries []ManifestEntry, opts BatchOptions) (model.BatchReport, error) {
	if opts.Mode == nil {
		return model.BatchReport{}, fmt.Errorf("%w: trimap mode is required", ErrInvalidArgument)
	}
	if opts.Parallel <= 0 {
		opts.Parallel = 1
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return model.BatchReport{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	startTime := time.Now()
	report := model.BatchReport{Total: len(entries)}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, opts.Parallel)

	// 输出路径重复的条目直接判为失败，避免并发写同一文件
	outPaths := make(map[string]string, len(entries))

schedule:
	for _, entry := range entries {
		outPath := TrimapOutputPath(opts.OutputDir, entry.Trimap)
		if prev, dup := outPaths[outPath]; dup {
			report.Failed++
			errs = append(errs, fmt.Errorf("%w: trimap %q and %q both map to %s",
				ErrInvalidArgument, prev, entry.Trimap, outPath))
			continue
		}
		outPaths[outPath] = entry.Trimap

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break schedule
		}

		wg.Add(1)
		go func(entry ManifestEntry, outPath string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := g.generate(ctx, entry, outPath, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				errs = append(errs, err)
				return
			}
			report.Succeeded++
		}(entry, outPath)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	report.Duration = time.Since(startTime).Milliseconds()
	utils.Logger.Info("batch finished",
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int64("duration_ms", report.Duration))

	return report, errors.Join(errs...)
}

// TrimapOutputPath 相对路径保留目录结构，绝对路径或越界路径只取文件名
func TrimapOutputPath(outputDir, trimap string) string {
	if filepath.IsLocal(trimap) {
		return filepath.Join(outputDir, trimap)
	}
	return filepath.Join(outputDir, filepath.Base(trimap))
}

func (g *BatchGenerator) generate(ctx context.Context, entry ManifestEntry, outPath string, opts BatchOptions) error {
	req := TrimapRequest{Source: SourceMask, Mode: opts.Mode}
	input := entry.Mask
	if opts.FromForeground {
		req.Source = SourceImage
		input = entry.Foreground
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	stats, err := g.matting.GenerateTrimapFile(ctx, input, outPath, req)
	if err != nil {
		utils.Logger.Warn("failed to generate trimap",
			zap.String("input", input),
			zap.Error(err))
		return err
	}

	utils.Logger.Debug("trimap written",
		zap.String("output", outPath),
		zap.Int("unknown", stats.Unknown),
		zap.Int("foreground", stats.Foreground))
	return nil
}
