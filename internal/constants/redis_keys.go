package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ScreenModulePrefix 筛选模块
	ScreenModulePrefix = "screen"

	// EntityResult 单次筛选结果实体
	EntityResult = "result"
	// EntityTalent 候选人信息实体
	EntityTalent = "talent"
	// EntityStats 条件集统计实体
	EntityStats = "stats"

	// KeyScreenResult 单次筛选结果缓存 (STRING, JSON)
	// 格式: app:screen:result:{md5(file_path)}
	KeyScreenResult = AppPrefix + ":" + ScreenModulePrefix + ":" + EntityResult + ":%s"

	// KeyScreenTalent 候选人信息缓存 (STRING, JSON)
	// 格式: app:screen:talent:{talentID}
	KeyScreenTalent = AppPrefix + ":" + ScreenModulePrefix + ":" + EntityTalent + ":%s"

	// KeyScreenStats 条件集通过/淘汰统计 (STRING, JSON)
	// 格式: app:screen:stats:{conditionSetID}
	KeyScreenStats = AppPrefix + ":" + ScreenModulePrefix + ":" + EntityStats + ":%s"
)
