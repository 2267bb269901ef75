package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lablink-go/internal/config"
	"lablink-go/internal/constants"
	"lablink-go/internal/logger"
	"lablink-go/internal/matching"
	"lablink-go/internal/storage"
	"lablink-go/internal/storage/models"
	"lablink-go/internal/types"
)

// RebuildLocker 索引重建的single-flight锁。
type RebuildLocker interface {
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}

// ListCache 教授列表的字符串缓存。
type ListCache interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	ClearMatchCache(ctx context.Context) error
	ClearProfessorCache(ctx context.Context) error
}

// IndexRebuilder 引擎的重建入口。
type IndexRebuilder interface {
	Rebuild(ctx context.Context, records []matching.CandidateRecord) *matching.Generation
}

// ProfessorHandler 负责教授目录查询与索引重建。
type ProfessorHandler struct {
	cfg    *config.Config
	store  ProfessorStore
	engine IndexRebuilder
	cache  ListCache     // 可为nil
	locker RebuildLocker // 可为nil，退化为无锁重建（单实例部署）
}

// NewProfessorHandler 创建一个新的 ProfessorHandler 实例。
func NewProfessorHandler(cfg *config.Config, store ProfessorStore, engine IndexRebuilder, cache ListCache, locker RebuildLocker) *ProfessorHandler {
	return &ProfessorHandler{
		cfg:    cfg,
		store:  store,
		engine: engine,
		cache:  cache,
		locker: locker,
	}
}

// HandleListProfessors 处理教授列表查询。
// GET /api/v1/professors?department=
func (ph *ProfessorHandler) HandleListProfessors(ctx context.Context, c *app.RequestContext) {
	department := strings.TrimSpace(c.Query("department"))

	cacheKey := professorListCacheKey(department)
	if ph.cache != nil {
		if raw, err := ph.cache.Get(ctx, cacheKey); err == nil && raw != "" {
			var cached []types.ProfessorOut
			if json.Unmarshal([]byte(raw), &cached) == nil {
				c.JSON(consts.StatusOK, map[string]interface{}{
					"professors": cached,
					"total":      len(cached),
				})
				return
			}
		} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Warn().Err(err).Str("key", cacheKey).Msg("读取教授列表缓存失败")
		}
	}

	profs, err := ph.store.ListProfessors(ctx, department)
	if err != nil {
		logger.Error().Err(err).Str("department", department).Msg("查询教授列表失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询教授列表失败"})
		return
	}

	out := make([]types.ProfessorOut, 0, len(profs))
	for i := range profs {
		out = append(out, storage.ProfessorView(&profs[i]))
	}

	if ph.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			if err := ph.cache.Set(ctx, cacheKey, string(data), constants.ProfessorCacheDuration); err != nil {
				logger.Warn().Err(err).Str("key", cacheKey).Msg("写入教授列表缓存失败")
			}
		}
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"professors": out,
		"total":      len(out),
	})
}

// HandleGetProfessor 处理单个教授查询。
// GET /api/v1/professors/:id
func (ph *ProfessorHandler) HandleGetProfessor(ctx context.Context, c *app.RequestContext) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "无效的教授ID"})
		return
	}

	prof, err := ph.store.GetProfessor(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": fmt.Sprintf("未找到ID为 %d 的教授", id)})
			return
		}
		logger.Error().Err(err).Int64("professor_id", id).Msg("查询教授失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询教授失败"})
		return
	}

	c.JSON(consts.StatusOK, storage.ProfessorView(prof))
}

// HandleListDepartments 列出所有院系名，供前端的院系过滤器使用。
// GET /api/v1/departments
func (ph *ProfessorHandler) HandleListDepartments(ctx context.Context, c *app.RequestContext) {
	departments, err := ph.store.ListDepartments(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("查询院系列表失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询院系列表失败"})
		return
	}
	if departments == nil {
		departments = []string{}
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"departments": departments,
		"total":       len(departments),
	})
}

// HandleUpsertProfessor 创建或更新一条教授记录并立即重建索引。
// POST /api/v1/professors
// 对应批量导入脚本的单条入口：写库、清缓存、换代一步完成。
func (ph *ProfessorHandler) HandleUpsertProfessor(ctx context.Context, c *app.RequestContext) {
	var in types.ProfessorIn
	if err := c.BindAndValidate(&in); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败: " + err.Error()})
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "name 不能为空"})
		return
	}

	pubs := make([]models.PublicationEntry, 0, len(in.RecentPublications))
	for _, p := range in.RecentPublications {
		pubs = append(pubs, models.PublicationEntry{
			Title:    p.Title,
			Abstract: p.Abstract,
			Year:     p.Year,
			Link:     p.Link,
		})
	}
	pubsJSON, err := storage.MarshalPublications(pubs)
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "论文列表序列化失败: " + err.Error()})
		return
	}

	prof := models.Professor{
		ID:                 in.ID,
		Name:               strings.TrimSpace(in.Name),
		Department:         strings.TrimSpace(in.Department),
		Email:              in.Email,
		ProfileLink:        in.ProfileLink,
		PhotoURL:           in.PhotoURL,
		ResearchInterests:  in.ResearchInterests,
		RecentPublications: datatypes.JSON(pubsJSON),
	}
	if err := ph.store.UpsertProfessor(ctx, &prof, in.Skills); err != nil {
		logger.Error().Err(err).Str("name", prof.Name).Msg("写入教授记录失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "写入教授记录失败"})
		return
	}

	gen, err := ph.rebuildFromStore(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("更新后重建索引失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "教授已保存但索引重建失败"})
		return
	}
	ph.clearCaches(ctx)

	logger.Info().
		Int64("professor_id", prof.ID).
		Str("generation", gen.ID).
		Msg("教授记录已保存并重建索引")

	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":     "ok",
		"id":         prof.ID,
		"generation": gen.ID,
	})
}

// HandleReload 从数据库重新加载教授数据并重建匹配索引。
// POST /api/v1/reload
// 通过分布式锁做single-flight：并发触发时只有一个实例执行重建，
// 其余立即返回202。重建成功后清除匹配结果与教授列表缓存。
func (ph *ProfessorHandler) HandleReload(ctx context.Context, c *app.RequestContext) {
	if ph.locker != nil {
		lockValue, err := ph.locker.AcquireLock(ctx, constants.KeyIndexRebuildLock, constants.RebuildLockDuration)
		if err != nil {
			logger.Warn().Err(err).Msg("获取重建锁失败，继续执行可能导致重复重建")
		} else if lockValue == "" {
			c.JSON(consts.StatusAccepted, map[string]interface{}{
				"status":      "processing",
				"message":     "索引重建已在进行中，请稍后重试",
				"retry_after": 2,
			})
			return
		} else {
			defer func() {
				released, err := ph.locker.ReleaseLock(ctx, constants.KeyIndexRebuildLock, lockValue)
				if err != nil || !released {
					logger.Warn().Err(err).Bool("released", released).Msg("释放重建锁失败")
				}
			}()
		}
	}

	start := time.Now()
	gen, err := ph.rebuildFromStore(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("重建索引时查询教授数据失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "加载教授数据失败"})
		return
	}
	ph.clearCaches(ctx)

	logger.Info().
		Str("generation", gen.ID).
		Int("professors", len(gen.Records)).
		Dur("elapsed", time.Since(start)).
		Msg("索引重建完成")

	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":     "ok",
		"generation": gen.ID,
		"professors": len(gen.Records),
		"semantic":   gen.Semantic.Enabled(),
	})
}

// rebuildFromStore 全量加载教授数据并发布新索引代。
func (ph *ProfessorHandler) rebuildFromStore(ctx context.Context) (*matching.Generation, error) {
	profs, err := ph.store.ListProfessors(ctx, "")
	if err != nil {
		return nil, err
	}
	records := make([]matching.CandidateRecord, 0, len(profs))
	for i := range profs {
		records = append(records, storage.ToCandidateRecord(&profs[i]))
	}
	return ph.engine.Rebuild(ctx, records), nil
}

// clearCaches 数据或索引变更后清除匹配结果与教授列表缓存。
func (ph *ProfessorHandler) clearCaches(ctx context.Context) {
	if ph.cache == nil {
		return
	}
	if err := ph.cache.ClearMatchCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("清除匹配结果缓存失败")
	}
	if err := ph.cache.ClearProfessorCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("清除教授列表缓存失败")
	}
}

func professorListCacheKey(department string) string {
	if department == "" {
		department = "all"
	}
	return fmt.Sprintf(constants.KeyProfessorList, strings.ToLower(department))
}
