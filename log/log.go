package log

var defaultLogger Logger

func init() {
	// 默认向终端输出 text 格式日志
	l, err := NewLoggerWithOptions(&Options{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = l
}

func Default() Logger {
	return defaultLogger
}

// SetDefault 替换进程默认日志器，nil 会被忽略
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Discard 丢弃所有输出的日志器
func Discard() Logger {
	return discardLogger{}
}
