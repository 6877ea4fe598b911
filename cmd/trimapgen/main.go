package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/service"
	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	manifestPath := flag.String("manifest", "", "数据集索引文件（每行：前景 背景 三分图 掩码）")
	fgDir := flag.String("fg-dir", "", "前景图目录")
	bgDir := flag.String("bg-dir", "", "背景图目录")
	maskDir := flag.String("mask-dir", "", "掩码目录")
	outDir := flag.String("out", "output/trimaps", "输出目录")
	mode := flag.String("mode", "", "三分图模式：trivial, boundary, morphological")
	boundary := flag.Int("boundary", 0, "boundary模式边框宽度")
	kernelLow := flag.Int("kernel-low", 0, "核大小下限（含）")
	kernelHigh := flag.Int("kernel-high", 0, "核大小上限（不含）")
	seed := flag.Uint64("seed", 0, "随机种子，0表示按时间")
	parallel := flag.Int("parallel", 4, "并行处理的最大协程数")
	fromForeground := flag.Bool("from-foreground", false, "从前景图提取alpha而不是读取掩码")
	flag.Parse()

	if *manifestPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, loadErr := loadConfig(*configPath, flagSet("config"))
	if cfg == nil {
		fmt.Printf("Failed to load config: %v\n", loadErr)
		os.Exit(1)
	}
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()
	if loadErr != nil {
		utils.Logger.Warn("failed to load config, using defaults",
			zap.String("path", *configPath),
			zap.Error(loadErr))
	}

	// 命令行参数覆盖配置
	t := &cfg.Trimap
	if *mode != "" {
		t.Mode = *mode
	}
	if *boundary > 0 {
		t.BoundaryWidth = *boundary
	}
	if *kernelLow > 0 {
		t.KernelLow = *kernelLow
	}
	if *kernelHigh > 0 {
		t.KernelHigh = *kernelHigh
	}
	if *seed != 0 {
		t.Seed = *seed
	}
	t.MaxConcurrent = max(1, *parallel)
	t.QueueTimeout = int((24 * time.Hour).Seconds())

	trimapMode, err := service.ParseMode(t.Mode, service.ModeParams{
		BoundaryWidth: t.BoundaryWidth,
		KernelLow:     t.KernelLow,
		KernelHigh:    t.KernelHigh,
		MaxKernel:     t.MaxKernel,
	})
	if err != nil {
		utils.Logger.Fatal("invalid trimap mode", zap.Error(err))
	}

	shuffleSeed := t.Seed
	if shuffleSeed == 0 {
		shuffleSeed = uint64(time.Now().UnixNano())
	}
	entries, err := service.ReadManifest(*manifestPath, service.ManifestDirs{
		Foreground: *fgDir,
		Background: *bgDir,
		Mask:       *maskDir,
	}, rand.New(rand.NewPCG(shuffleSeed, 0)))
	if err != nil {
		utils.Logger.Fatal("failed to read manifest", zap.Error(err))
	}

	utils.Logger.Info("generating trimaps",
		zap.Int("entries", len(entries)),
		zap.String("mode", trimapMode.Name()),
		zap.String("output", *outDir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	generator := service.NewBatchGenerator(service.NewMattingService(t))
	report, err := generator.Run(ctx, entries, service.BatchOptions{
		OutputDir:      *outDir,
		Mode:           trimapMode,
		Parallel:       *parallel,
		FromForeground: *fromForeground,
	})
	if err != nil {
		utils.Logger.Error("some trimaps failed",
			zap.Int("failed", report.Failed),
			zap.Error(err))
		os.Exit(1)
	}
}

// loadConfig 显式指定的配置文件加载失败时返回nil；
// 默认路径加载失败时回退到默认配置，并返回加载错误供记录
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if explicit {
		return nil, err
	}
	return config.Default(), err
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
