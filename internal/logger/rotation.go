package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newRotatingWriter opens a size-rotated log file described by fo.
func newRotatingWriter(fo *FileOutput) (*lumberjack.Logger, error) {
	if fo.Path == "" {
		return nil, fmt.Errorf("file path is required for rotating logger")
	}
	if dir := filepath.Dir(fo.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}
	return &lumberjack.Logger{
		Filename:   fo.Path,
		MaxSize:    fo.MaxSize,
		MaxBackups: fo.MaxBackups,
		MaxAge:     fo.MaxAge,
		Compress:   fo.Compress,
	}, nil
}
