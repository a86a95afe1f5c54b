/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/guestix/guestix/internal/config"
	"github.com/guestix/guestix/internal/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// DatabaseType 数据库类型常量
const (
	DatabaseTypeSQLite   = "sqlite"
	DatabaseTypeMySQL    = "mysql"
	DatabaseTypePostgres = "postgres"
)

// Open 根据记账配置打开数据库连接
// 支持 SQLite、MySQL、PostgreSQL 三种数据库类型，默认使用 SQLite
func Open(ctx context.Context, cfg config.AccountingConfig) (*gorm.DB, error) {
	var err error
	var dialector gorm.Dialector

	dbType := cfg.Type
	if dbType == "" {
		dbType = DatabaseTypeSQLite
	}

	switch dbType {
	case DatabaseTypeSQLite:
		dialector, err = sqliteDialector(ctx, cfg.SQLitePath)
	case DatabaseTypeMySQL:
		dialector = mysqlDialector(ctx, cfg)
	case DatabaseTypePostgres:
		dialector = postgresDialector(ctx, cfg)
	default:
		return nil, fmt.Errorf("[Database] 不支持的数据库类型: %s，支持的类型: sqlite, mysql, postgres", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("[Database] 初始化 %s 驱动失败: %w", dbType, err)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   getGormLogger(cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("[Database] 连接 %s 数据库失败: %w", dbType, err)
	}

	// 注入 OpenTelemetry 追踪
	if err := gdb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		logger.Warn(ctx, "[Database] 初始化追踪插件失败", zap.Error(err))
	}

	logger.InfoF(ctx, "[Database] 成功连接到 %s 数据库", dbType)
	return gdb, nil
}

// AutoMigrate 迁移给定模型的表结构
func AutoMigrate(ctx context.Context, gdb *gorm.DB, models ...any) error {
	if err := gdb.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("[Database] 迁移失败: %w", err)
	}
	return nil
}

// Close 关闭底层连接
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDialector(ctx context.Context, sqlitePath string) (gorm.Dialector, error) {
	if sqlitePath == "" {
		sqlitePath = config.DefaultAcctPath
	}

	// 确保目录存在
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		return nil, fmt.Errorf("创建 SQLite 目录失败: %w", err)
	}

	logger.InfoF(ctx, "[Database] 使用 SQLite 数据库: %s", sqlitePath)
	return sqlite.Open(sqlitePath), nil
}

func mysqlDialector(ctx context.Context, cfg config.AccountingConfig) gorm.Dialector {
	logger.InfoF(ctx, "[Database] 连接 MySQL 数据库: %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return mysql.Open(mysqlDSN(cfg))
}

func postgresDialector(ctx context.Context, cfg config.AccountingConfig) gorm.Dialector {
	logger.InfoF(ctx, "[Database] 连接 PostgreSQL 数据库: %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return postgres.Open(postgresDSN(cfg))
}

func mysqlDSN(cfg config.AccountingConfig) string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
}

func postgresDSN(cfg config.AccountingConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database,
	)
}

// getGormLogger 根据配置获取 GORM 日志记录器
func getGormLogger(level string) gormlogger.Interface {
	var logLevel gormlogger.LogLevel
	switch level {
	case "silent":
		logLevel = gormlogger.Silent
	case "error":
		logLevel = gormlogger.Error
	case "warn":
		logLevel = gormlogger.Warn
	default:
		logLevel = gormlogger.Info
	}
	return gormlogger.Default.LogMode(logLevel)
}
