package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resume-screen-go/internal/config"
	"resume-screen-go/internal/constants"
	"resume-screen-go/internal/pipeline"
	"resume-screen-go/internal/storage/models"
	"resume-screen-go/internal/tracing"
)

var mysqlTracer = otel.Tracer("resume-screen-go/storage/mysql")

// GormTracingPlugin GORM插件，为数据库操作生成OpenTelemetry追踪span
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 为各类CRUD操作注册前后回调
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after())
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

type gormSpanKey struct{}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if sql := db.Statement.SQL.String(); sql != "" {
			span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
		}

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// 未命中是正常业务分支，不算错误
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer: mysqlTracer,
		dbName: dbName,
	}
}

// MySQL 关系型存储，持有gorm连接
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并完成表结构迁移")
	return m, nil
}

// autoMigrateSchema 静默迁移表结构，避免启动时刷屏
func (m *MySQL) autoMigrateSchema() error {
	silentDB := m.db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	if err := silentDB.AutoMigrate(
		&models.Talent{},
		&models.ConditionSet{},
	); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// TalentStore 基于MySQL的候选人与条件集存取实现
type TalentStore struct {
	db *gorm.DB
}

// NewTalentStore 创建候选人存取器
func NewTalentStore(m *MySQL) *TalentStore {
	return &TalentStore{db: m.DB()}
}

var _ pipeline.TalentRepo = (*TalentStore)(nil)

// CreateTalent 插入一条候选人记录
func (s *TalentStore) CreateTalent(ctx context.Context, talent *models.Talent) error {
	return s.db.WithContext(ctx).Create(talent).Error
}

// UpdateTalentWorkflowStatus 更新候选人的处理状态
func (s *TalentStore) UpdateTalentWorkflowStatus(ctx context.Context, talentID, status string) error {
	result := s.db.WithContext(ctx).Model(&models.Talent{}).
		Where("talent_id = ?", talentID).
		Update("workflow_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("候选人 %s 不存在", talentID)
	}
	return nil
}

// GetTalent 按ID查询候选人，未找到返回 (nil, nil)
func (s *TalentStore) GetTalent(ctx context.Context, talentID string) (*models.Talent, error) {
	var talent models.Talent
	err := s.db.WithContext(ctx).Where("talent_id = ?", talentID).First(&talent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &talent, nil
}

// ListTalents 按筛选状态分页查询候选人，status为空时查全部
func (s *TalentStore) ListTalents(ctx context.Context, status string, offset, limit int) ([]models.Talent, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.db.WithContext(ctx).Model(&models.Talent{})
	if status != "" {
		query = query.Where("screening_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var talents []models.Talent
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&talents).Error; err != nil {
		return nil, 0, err
	}
	return talents, total, nil
}

// GetConditionSet 按ID查询条件集，未找到返回 (nil, nil)
func (s *TalentStore) GetConditionSet(ctx context.Context, id string) (*models.ConditionSet, error) {
	var set models.ConditionSet
	err := s.db.WithContext(ctx).Where("condition_set_id = ?", id).First(&set).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// CreateConditionSet 插入一条条件集记录
func (s *TalentStore) CreateConditionSet(ctx context.Context, set *models.ConditionSet) error {
	return s.db.WithContext(ctx).Create(set).Error
}

// UpdateConditionSet 更新条件集的名称、描述与配置
func (s *TalentStore) UpdateConditionSet(ctx context.Context, set *models.ConditionSet) error {
	result := s.db.WithContext(ctx).Model(&models.ConditionSet{}).
		Where("condition_set_id = ?", set.ConditionSetID).
		Updates(map[string]interface{}{
			"name":        set.Name,
			"description": set.Description,
			"config_json": set.ConfigJSON,
			"status":      set.Status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("条件集 %s 不存在", set.ConditionSetID)
	}
	return nil
}

// ListConditionSets 查询全部未删除的条件集
func (s *TalentStore) ListConditionSets(ctx context.Context) ([]models.ConditionSet, error) {
	var sets []models.ConditionSet
	err := s.db.WithContext(ctx).
		Where("status <> ?", constants.ConditionSetDeleted).
		Order("created_at DESC").
		Find(&sets).Error
	return sets, err
}

// DeleteConditionSet 逻辑删除条件集
func (s *TalentStore) DeleteConditionSet(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&models.ConditionSet{}).
		Where("condition_set_id = ?", id).
		Update("status", constants.ConditionSetDeleted)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("条件集 %s 不存在", id)
	}
	return nil
}

// WithTransaction 在单个事务内执行fn，fn返回错误则整体回滚
func (s *TalentStore) WithTransaction(ctx context.Context, fn func(repo pipeline.TalentRepo) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TalentStore{db: tx})
	})
}
