package json

import (
	"errors"
	"os"
	"regexp"
	"time"

	"dario.cat/mergo"

	"github.com/ninja0404/whale-signal/pkg/config/encoder"
	"github.com/ninja0404/whale-signal/pkg/config/encoder/json"
	"github.com/ninja0404/whale-signal/pkg/config/reader"
	"github.com/ninja0404/whale-signal/pkg/config/source"
)

type jsonReader struct {
	opts reader.Options
	json encoder.Encoder
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ReplaceEnvVars 展开 ${VAR} 与 ${VAR:-default} 占位符
func ReplaceEnvVars(raw []byte) ([]byte, error) {
	out := envPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		sub := envPattern.FindSubmatch(m)
		if v, ok := os.LookupEnv(string(sub[1])); ok {
			return []byte(v)
		}
		return sub[2]
	})
	return out, nil
}

func (j *jsonReader) Merge(changes ...*source.ChangeSet) (*source.ChangeSet, error) {
	var merged map[string]interface{}

	for _, m := range changes {
		if m == nil || len(m.Data) == 0 {
			continue
		}

		codec, ok := j.opts.Encoding[m.Format]
		if !ok {
			codec = j.json
		}

		var data map[string]interface{}
		if err := codec.Decode(m.Data, &data); err != nil {
			return nil, err
		}
		if merged == nil {
			merged = data
			continue
		}
		if err := mergo.Merge(&merged, data, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	b, err := j.json.Encode(merged)
	if err != nil {
		return nil, err
	}

	cs := &source.ChangeSet{
		Timestamp: time.Now(),
		Data:      b,
		Source:    "json",
		Format:    j.json.String(),
	}
	cs.Checksum = cs.Sum()

	return cs, nil
}

func (j *jsonReader) Values(ch *source.ChangeSet) (reader.Values, error) {
	if ch == nil {
		return nil, errors.New("changeset is nil")
	}
	if ch.Format != "json" && ch.Format != "yaml" {
		return nil, errors.New("unsupported format")
	}
	return newValues(ch)
}

func (j *jsonReader) String() string {
	return "json"
}

// NewReader 基于 simplejson 的配置读取器
func NewReader(opts ...reader.Option) reader.Reader {
	options := reader.NewOptions(opts...)
	return &jsonReader{
		json: json.NewJsonEncoder(),
		opts: options,
	}
}
