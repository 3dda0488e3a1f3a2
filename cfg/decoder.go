package cfg

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Decoder 将配置数据解码为通用的 map/slice 树
type Decoder interface {
	Decode(data []byte) (any, error)
}

func NewDecoder(format string) (Decoder, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return YamlDecoder{}, nil
	case "json":
		return JsonDecoder{}, nil
	case "toml":
		return TomlDecoder{}, nil
	case "ini":
		return IniDecoder{}, nil
	default:
		return nil, errors.Errorf("unsupported config format: %q", format)
	}
}

type YamlDecoder struct{}

func (YamlDecoder) Decode(data []byte) (any, error) {
	var result any
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode YAML")
	}
	return result, nil
}

type JsonDecoder struct{}

func (JsonDecoder) Decode(data []byte) (any, error) {
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode JSON")
	}
	return result, nil
}

type TomlDecoder struct{}

func (TomlDecoder) Decode(data []byte) (any, error) {
	var result map[string]any
	if _, err := toml.Decode(string(data), &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode TOML")
	}
	return result, nil
}

// IniDecoder INI 格式解码器
// section 名中的点号表示嵌套，例如 [database.pool]
type IniDecoder struct{}

func (IniDecoder) Decode(data []byte) (any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode INI")
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		node := result
		if name := section.Name(); name != ini.DefaultSection {
			for _, part := range strings.Split(name, ".") {
				child, ok := node[part].(map[string]any)
				if !ok {
					child = map[string]any{}
					node[part] = child
				}
				node = child
			}
		}
		for _, key := range section.Keys() {
			node[key.Name()] = parseIniValue(key.Value())
		}
	}
	return result, nil
}

func parseIniValue(value string) any {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
