package polardbx

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/hashicorp/go-multierror"

	cnf "github.com/ninja0404/whale-signal/pkg/config"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

const (
	DEFAULT_DB     = "default"
	DEFAULT_CONFIG = "polarx"
)

var dbs map[string]*gorm.DB

func init() {
	dbs = make(map[string]*gorm.DB)
}

func SetupDatabaseFromDefaultConfig() error {
	return setupDatabaseFromConfig(DEFAULT_DB, DEFAULT_CONFIG)
}

func setupDatabaseFromConfig(name string, configKey string) error {
	var config MysqlConfig
	if err := cnf.Get(configKey).Scan(&config); err != nil {
		return err
	}
	return SetupDatabase(name, &config)
}

// SetupDatabase 按给定配置建立连接并注册到 name
func SetupDatabase(name string, config *MysqlConfig) error {
	newDB, err := createDatabase(config)
	if err != nil {
		return errors.Wrapf(err, "connect mysql %s", name)
	}
	dbs[name] = newDB.db
	logger.Info(
		"🗄️ mysql database connected",
		logger.String("name", name),
		logger.String("host", config.Host),
		logger.Int("port", config.Port),
		logger.String("database", config.Database),
	)
	return nil
}

// AutoMigrate 在默认库上同步表结构
func AutoMigrate(models ...interface{}) error {
	db, err := GetDb()
	if err != nil {
		return err
	}
	return errors.Wrap(db.AutoMigrate(models...), "auto migrate")
}

func Stop() error {
	var merr error
	for dname, db := range dbs {
		realDB, err := db.DB()
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		if err := realDB.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
		delete(dbs, dname)
		logger.Info(
			"mysql database closed",
			logger.String("name", dname),
		)
	}
	return merr
}

func GetDb() (*gorm.DB, error) {
	return GetDbWithName(DEFAULT_DB)
}

func GetDbWithName(name string) (*gorm.DB, error) {
	db, ok := dbs[name]
	if !ok {
		return nil, errors.New("database does not initialized")
	}
	return db, nil
}
