package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}

// OutputOptions 输出目标配置
type OutputOptions struct {
	// 输出类型：console, file
	Type string `cfg:"type" def:"console" validate:"oneof=console file"`
	// 控制台输出目标：stdout, stderr
	Target string `cfg:"target" def:"stdout" validate:"omitempty,oneof=stdout stderr"`
	// 文件路径，Type 为 file 时必填
	Path string `cfg:"path"`
}

// NewWriterWithOptions 根据配置创建输出器
func NewWriterWithOptions(options *OutputOptions) (Writer, error) {
	if options == nil || options.Type == "" || options.Type == "console" {
		target := "stdout"
		if options != nil {
			target = options.Target
		}
		return NewConsoleWriter(target), nil
	}
	if options.Type == "file" {
		return NewFileWriter(options.Path)
	}
	return nil, errors.Errorf("unsupported output type: %s", options.Type)
}

// ConsoleWriter 控制台输出器
type ConsoleWriter struct {
	writer io.Writer
}

func NewConsoleWriter(target string) *ConsoleWriter {
	if target == "stderr" {
		return &ConsoleWriter{writer: os.Stderr}
	}
	return &ConsoleWriter{writer: os.Stdout}
}

func (c *ConsoleWriter) Write(p []byte) (int, error) {
	return c.writer.Write(p)
}

// Close 控制台不需要关闭
func (c *ConsoleWriter) Close() error {
	return nil
}

// FileWriter 文件输出器，追加写入
type FileWriter struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func NewFileWriter(path string) (*FileWriter, error) {
	if path == "" {
		return nil, errors.New("file path is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory %s", dir)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file %s", path)
	}

	return &FileWriter{path: path, file: file}, nil
}

func (f *FileWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return 0, errors.Errorf("file %s is closed", f.path)
	}
	return f.file.Write(p)
}

func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
