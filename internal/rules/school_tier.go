package rules

import "strings"

// 院校层级token，作为 school_tier 字段的取值参与条件比较
const (
	TierKey      = "985_211" // 国内重点（985/211）
	TierOverseas = "overseas"
	TierOrdinary = "ordinary"
)

// 国内重点院校（985/211）及常见别名
var domesticKeySchools = [][]string{
	{"清华大学", "清华", "tsinghua university", "tsinghua"},
	{"北京大学", "北大", "peking university", "pku"},
	{"复旦大学", "复旦", "fudan university"},
	{"上海交通大学", "上海交大", "shanghai jiao tong university", "sjtu"},
	{"浙江大学", "浙大", "zhejiang university", "zju"},
	{"南京大学", "南大", "nanjing university"},
	{"中国科学技术大学", "中科大", "university of science and technology of china", "ustc"},
	{"哈尔滨工业大学", "哈工大", "harbin institute of technology", "hit"},
	{"西安交通大学", "西安交大", "xi'an jiaotong university"},
	{"武汉大学", "武大", "wuhan university"},
	{"华中科技大学", "华科", "huazhong university of science and technology", "hust"},
	{"中山大学", "sun yat-sen university", "sysu"},
	{"四川大学", "川大", "sichuan university"},
	{"同济大学", "tongji university"},
	{"东南大学", "southeast university"},
	{"南开大学", "nankai university"},
	{"天津大学", "tianjin university"},
	{"北京航空航天大学", "北航", "beihang university"},
	{"北京理工大学", "北理工", "beijing institute of technology"},
	{"中国人民大学", "人大", "renmin university of china", "ruc"},
	{"电子科技大学", "成电", "university of electronic science and technology of china", "uestc"},
	{"厦门大学", "厦大", "xiamen university"},
	{"中南大学", "central south university"},
	{"山东大学", "shandong university"},
	{"吉林大学", "jilin university"},
	{"北京邮电大学", "北邮", "beijing university of posts and telecommunications", "bupt"},
	{"上海财经大学", "shanghai university of finance and economics"},
	{"西安电子科技大学", "西电", "xidian university"},
}

// 国内普通本科院校及常见别名
var domesticOtherSchools = [][]string{
	{"深圳大学", "shenzhen university"},
	{"杭州电子科技大学", "杭电", "hangzhou dianzi university"},
	{"南京邮电大学", "南邮", "nanjing university of posts and telecommunications"},
	{"浙江工业大学", "zhejiang university of technology"},
	{"广东工业大学", "guangdong university of technology"},
	{"首都师范大学", "capital normal university"},
	{"上海理工大学", "university of shanghai for science and technology"},
	{"浙江理工大学", "zhejiang sci-tech university"},
	{"重庆邮电大学", "chongqing university of posts and telecommunications"},
	{"南京工业大学", "nanjing tech university"},
	{"燕山大学", "yanshan university"},
	{"江苏大学", "jiangsu university"},
}

// 海外知名院校及常见别名。
// 个别院校（如清华）同时出现在海外榜单里，归类时国内表优先。
var overseasSchools = [][]string{
	{"massachusetts institute of technology", "mit", "麻省理工学院", "麻省理工"},
	{"stanford university", "stanford", "斯坦福大学"},
	{"harvard university", "harvard", "哈佛大学"},
	{"university of cambridge", "cambridge", "剑桥大学"},
	{"university of oxford", "oxford", "牛津大学"},
	{"eth zurich", "苏黎世联邦理工学院"},
	{"imperial college london", "帝国理工学院"},
	{"national university of singapore", "nus", "新加坡国立大学"},
	{"nanyang technological university", "ntu", "南洋理工大学"},
	{"university of tokyo", "东京大学"},
	{"carnegie mellon university", "cmu", "卡内基梅隆大学"},
	{"university of california, berkeley", "uc berkeley", "加州大学伯克利分校"},
	{"university of toronto", "多伦多大学"},
	{"university of melbourne", "墨尔本大学"},
	{"清华大学", "tsinghua university"},
	{"北京大学", "peking university"},
	{"香港大学", "university of hong kong", "hku"},
	{"香港科技大学", "hong kong university of science and technology", "hkust"},
}

type schoolTable struct {
	tier    string
	aliases map[string]bool
}

// 按优先级排列的分类表：国内表在海外表之前，
// 同时出现在国内表和海外表中的院校稳定地归为国内层级。
var schoolTables = []schoolTable{
	buildTable(TierKey, domesticKeySchools),
	buildTable(TierOrdinary, domesticOtherSchools),
	buildTable(TierOverseas, overseasSchools),
}

func buildTable(tier string, groups [][]string) schoolTable {
	aliases := make(map[string]bool)
	for _, group := range groups {
		for _, alias := range group {
			aliases[normalizeSchool(alias)] = true
		}
	}
	return schoolTable{tier: tier, aliases: aliases}
}

// normalizeSchool 归一化院校名：小写、去空白与常见标点
func normalizeSchool(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer(" ", "", "　", "", ",", "", "，", "", ".", "", "'", "", "’", "").Replace(s)
	return s
}

// ClassifySchoolTier 把院校名归到层级token。
// 查找顺序固定：国内重点 → 国内普通 → 海外 → 兜底ordinary，
// 先精确匹配别名，再做包含匹配（"清华大学计算机系" 也能命中清华）。
func ClassifySchoolTier(school string) string {
	normalized := normalizeSchool(school)
	if normalized == "" {
		return TierOrdinary
	}

	for _, table := range schoolTables {
		if table.aliases[normalized] {
			return table.tier
		}
	}
	for _, table := range schoolTables {
		for alias := range table.aliases {
			if len(alias) >= 4 && strings.Contains(normalized, alias) {
				return table.tier
			}
		}
	}
	return TierOrdinary
}
