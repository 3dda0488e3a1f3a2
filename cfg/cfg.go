package cfg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// LoadFile 从配置文件加载选项
// 根据扩展名选择解码器，然后依次应用环境变量覆盖、def 默认值和校验
func LoadFile(filename string, object any) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", filename)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if err := Unmarshal(data, format, object); err != nil {
		return errors.WithMessagef(err, "failed to load config file %s", filename)
	}
	return nil
}

// Unmarshal 按指定格式解析配置数据到 object
func Unmarshal(data []byte, format string, object any) error {
	decoder, err := NewDecoder(format)
	if err != nil {
		return err
	}
	tree, err := decoder.Decode(data)
	if err != nil {
		return err
	}
	if err := ConvertTo(tree, object); err != nil {
		return errors.WithMessage(err, "failed to convert config")
	}
	return Complete(object)
}

// Complete 对已填充的选项应用环境变量覆盖、默认值和校验
func Complete(object any) error {
	if err := cleanenv.ReadEnv(object); err != nil {
		return errors.Wrap(err, "failed to read environment variables")
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "failed to set defaults")
	}
	if err := Validate(object); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
