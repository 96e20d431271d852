package file

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ninja0404/whale-signal/pkg/config/source"
)

type file struct {
	path string
	opts source.Options
}

const (
	DEFAULT_CONFIG_FILE_NAME   = "config"
	DEFAULT_CONFIG_FILE_FORMAT = "yaml"
)

func (f *file) Read() (*source.ChangeSet, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}

	cs := &source.ChangeSet{
		Format:    f.opts.Format,
		Source:    f.String(),
		Timestamp: info.ModTime(),
		Data:      b,
	}
	cs.Checksum = cs.Sum()

	return cs, nil
}

func (f *file) String() string {
	return "file"
}

func (f *file) Watch() (source.Watcher, error) {
	if _, err := os.Stat(f.path); err != nil {
		return nil, err
	}
	return newWatcher(f)
}

func (f *file) Write(cs *source.ChangeSet) error {
	return nil
}

// NewSource 文件配置源，未显式指定格式时按扩展名推断
func NewSource(opts ...source.Option) source.Source {
	options := source.NewOptions(opts...)

	path, ok := options.Context.Value(filePathKey{}).(string)
	if options.Format == "" && ok {
		switch ext := strings.TrimPrefix(filepath.Ext(path), "."); ext {
		case "yml":
			options.Format = "yaml"
		case "json", "yaml", "toml":
			options.Format = ext
		}
	}
	if options.Format == "" {
		options.Format = DEFAULT_CONFIG_FILE_FORMAT
	}
	if !ok {
		path = DEFAULT_CONFIG_FILE_NAME + "." + options.Format
	}

	return &file{opts: options, path: path}
}
