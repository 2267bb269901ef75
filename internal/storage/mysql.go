package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lablink-go/internal/config"
	"lablink-go/internal/matching"
	"lablink-go/internal/storage/models"
	"lablink-go/internal/tracing"
	"lablink-go/internal/types"
)

var mysqlTracer = otel.Tracer("lablink-go/storage/mysql")

// GormTracingPlugin GORM插件，为数据库操作添加OpenTelemetry追踪点
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

type gormSpanKey struct{}

// Initialize 注册GORM回调以启用追踪
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
	return nil
}

// before 在GORM操作前开启span
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
		spanName := fmt.Sprintf("%s %s", operation, tableName)
		ctx, span := p.tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(ctx, gormSpanKey{}, span)
	}
}

// after 在GORM操作后结束span并记录错误
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
		span.End()
	}
}

// MySQL 教授数据的持久化层
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端，完成连接池设置、追踪插件注册与表迁移。
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	logLevel := gormlogger.Warn
	switch cfg.LogLevel {
	case "silent":
		logLevel = gormlogger.Silent
	case "error":
		logLevel = gormlogger.Error
	case "info":
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层sql.DB失败: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}

	if err := db.Use(&GormTracingPlugin{tracer: mysqlTracer, dbName: cfg.Database}); err != nil {
		return nil, fmt.Errorf("注册GORM追踪插件失败: %w", err)
	}

	if err := db.AutoMigrate(&models.Professor{}, &models.Skill{}, &models.ProfessorSkill{}); err != nil {
		return nil, fmt.Errorf("表结构迁移失败: %w", err)
	}

	return &MySQL{db: db, cfg: cfg}, nil
}

// DB 返回底层GORM实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListProfessors 按院系过滤列出教授（department为空返回全部），
// 预加载技能关联，按ID升序保证顺序稳定。
func (m *MySQL) ListProfessors(ctx context.Context, department string) ([]models.Professor, error) {
	var profs []models.Professor
	q := m.db.WithContext(ctx).
		Preload("ProfessorSkills.Skill").
		Order("id ASC")
	if department != "" {
		q = q.Where("department = ?", department)
	}
	if err := q.Find(&profs).Error; err != nil {
		return nil, fmt.Errorf("查询教授列表失败: %w", err)
	}
	return profs, nil
}

// ListDepartments 列出所有出现过的院系名，去重并按字母序排列。
func (m *MySQL) ListDepartments(ctx context.Context) ([]string, error) {
	var departments []string
	err := m.db.WithContext(ctx).
		Model(&models.Professor{}).
		Where("department <> ''").
		Distinct("department").
		Order("department ASC").
		Pluck("department", &departments).Error
	if err != nil {
		return nil, fmt.Errorf("查询院系列表失败: %w", err)
	}
	return departments, nil
}

// GetProfessor 按ID查询单个教授
func (m *MySQL) GetProfessor(ctx context.Context, id int64) (*models.Professor, error) {
	var prof models.Professor
	err := m.db.WithContext(ctx).
		Preload("ProfessorSkills.Skill").
		First(&prof, id).Error
	if err != nil {
		return nil, err
	}
	return &prof, nil
}

// UpsertProfessor 创建或更新教授记录，并同步技能关联。
func (m *MySQL) UpsertProfessor(ctx context.Context, prof *models.Professor, skillNames []string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(prof).Error; err != nil {
			return fmt.Errorf("保存教授记录失败: %w", err)
		}
		if err := tx.Where("professor_id = ?", prof.ID).Delete(&models.ProfessorSkill{}).Error; err != nil {
			return fmt.Errorf("清理旧技能关联失败: %w", err)
		}
		for _, name := range skillNames {
			canonical := matching.NormalizeSkill(name)
			if canonical == "" {
				continue
			}
			var skill models.Skill
			if err := tx.Where(models.Skill{Name: canonical}).FirstOrCreate(&skill).Error; err != nil {
				return fmt.Errorf("创建技能记录失败: %w", err)
			}
			link := models.ProfessorSkill{ProfessorID: prof.ID, SkillID: skill.ID}
			if err := tx.Create(&link).Error; err != nil {
				return fmt.Errorf("创建技能关联失败: %w", err)
			}
		}
		return nil
	})
}

// SkillNames 取教授关联的规范技能名列表。
func SkillNames(prof *models.Professor) []string {
	out := make([]string, 0, len(prof.ProfessorSkills))
	for _, ps := range prof.ProfessorSkills {
		if ps.Skill.Name != "" {
			out = append(out, ps.Skill.Name)
		}
	}
	return out
}

// ProfessorView 把教授行映射为API输出结构。
func ProfessorView(prof *models.Professor) types.ProfessorOut {
	pubs := prof.Publications()
	pubsOut := make([]types.PublicationOut, 0, len(pubs))
	for _, p := range pubs {
		pubsOut = append(pubsOut, types.PublicationOut{
			Title:    p.Title,
			Abstract: p.Abstract,
			Year:     p.Year,
			Link:     p.Link,
		})
	}
	return types.ProfessorOut{
		ID:                 prof.ID,
		Name:               prof.Name,
		Department:         prof.Department,
		Email:              prof.Email,
		ProfileLink:        prof.ProfileLink,
		PhotoURL:           prof.PhotoURL,
		ResearchInterests:  prof.ResearchInterests,
		Skills:             SkillNames(prof),
		RecentPublications: pubsOut,
	}
}

// ToCandidateRecord 把教授行转换为匹配引擎的只读输入记录。
// Payload携带完整的展示视图，随打分结果原样返回给API层。
func ToCandidateRecord(prof *models.Professor) matching.CandidateRecord {
	pubs := prof.Publications()
	records := make([]matching.Publication, 0, len(pubs))
	for _, p := range pubs {
		records = append(records, matching.Publication{
			Title:    p.Title,
			Abstract: p.Abstract,
			Year:     p.Year,
		})
	}
	view := ProfessorView(prof)
	return matching.CandidateRecord{
		ID:           prof.ID,
		Interests:    prof.ResearchInterests,
		Skills:       view.Skills,
		Publications: records,
		Payload:      &view,
	}
}

// MarshalPublications 序列化论文列表为JSON列值。
func MarshalPublications(pubs []models.PublicationEntry) ([]byte, error) {
	return json.Marshal(pubs)
}
