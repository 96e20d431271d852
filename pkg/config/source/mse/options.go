package mse

import (
	"context"

	"github.com/caarlos0/env/v11"

	"github.com/ninja0404/whale-signal/pkg/config/source"
)

type mseConfigKey struct{}

type MseConfig struct {
	ServerAddr  string `env:"MSE_SERVER_ADDR,required"`
	Port        uint64 `env:"MSE_PORT" envDefault:"8848"`
	NamespaceID string `env:"MSE_NAMESPACE,required"`
	AccessKey   string `env:"MSE_ACCESSKEY,required"`
	SecretKey   string `env:"MSE_SECRETKEY,required"`
	Group       string `env:"MSE_GROUP" envDefault:"DEFAULT_GROUP"`
	DataID      string `env:"MSE_DATAID,required"`
	LogDir      string `env:"MSE_LOG_DIR"`
	CacheDir    string `env:"MSE_CACHE_DIR"`
}

// ConfigFromEnv 从环境变量解析 MSE 连接参数
func ConfigFromEnv() (*MseConfig, error) {
	conf := &MseConfig{}
	if err := env.Parse(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

func WithMseConfig(conf *MseConfig) source.Option {
	return func(o *source.Options) {
		if o.Context == nil {
			o.Context = context.Background()
		}
		o.Context = context.WithValue(o.Context, mseConfigKey{}, conf)
	}
}
