package service

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

// ManifestEntry 数据集索引中的一行：前景、背景、三分图、掩码
type ManifestEntry struct {
	Foreground string
	Background string
	Trimap     string
	Mask       string
}

// ManifestDirs 各字段的基础目录，为空则保留原始相对路径
type ManifestDirs struct {
	Foreground string
	Background string
	Trimap     string
	Mask       string
}

func (d ManifestDirs) empty() bool {
	return d == ManifestDirs{}
}

const manifestFields = 4

// ReadManifest 读取索引文件并随机打乱行顺序
func ReadManifest(path string, dirs ManifestDirs, rng *rand.Rand) ([]ManifestEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var entries []ManifestEntry
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != manifestFields {
			return nil, fmt.Errorf("%w: manifest line %d has %d fields, expected %d",
				ErrInvalidArgument, lineNo, len(fields), manifestFields)
		}
		entries = append(entries, ManifestEntry{
			Foreground: fields[0],
			Background: fields[1],
			Trimap:     fields[2],
			Mask:       fields[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	if rng != nil {
		rng.Shuffle(len(entries), func(i, j int) {
			entries[i], entries[j] = entries[j], entries[i]
		})
	}

	if dirs.empty() {
		return entries, nil
	}
	for i := range entries {
		entries[i] = entries[i].resolve(dirs)
	}
	return entries, nil
}

func (e ManifestEntry) resolve(dirs ManifestDirs) ManifestEntry {
	return ManifestEntry{
		Foreground: joinIfSet(dirs.Foreground, e.Foreground),
		Background: joinIfSet(dirs.Background, e.Background),
		Trimap:     joinIfSet(dirs.Trimap, e.Trimap),
		Mask:       joinIfSet(dirs.Mask, e.Mask),
	}
}

func joinIfSet(dir, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
