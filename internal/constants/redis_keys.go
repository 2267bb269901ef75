package constants

// Redis Key 前缀和格式常量
// 统一命名规范: lablink:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "lablink"

	// MatchModulePrefix 匹配模块
	MatchModulePrefix = "match"
	// ProfessorModulePrefix 教授模块
	ProfessorModulePrefix = "professor"
	// IndexModulePrefix 索引模块
	IndexModulePrefix = "index"

	// KeyMatchResult 匹配结果缓存 (STRING, JSON)
	// 格式: lablink:match:result:{queryHash}
	KeyMatchResult = AppPrefix + ":" + MatchModulePrefix + ":result:%s"

	// KeyProfessorList 教授列表缓存 (STRING, JSON)
	// 格式: lablink:professor:list:{department}
	KeyProfessorList = AppPrefix + ":" + ProfessorModulePrefix + ":list:%s"

	// KeyIndexRebuildLock 索引重建single-flight锁 (STRING)
	// 格式: lablink:index:lock
	KeyIndexRebuildLock = AppPrefix + ":" + IndexModulePrefix + ":lock"
)
