package rules

import "strings"

// 学历序数刻度：数值越大学历越高，用于 gt/lt/gte/lte 比较
const (
	eduHighSchool = 0
	eduAssociate  = 1
	eduBachelor   = 2
	eduMaster     = 3
	eduDoctor     = 4
)

// educationOrdinals 中英文学历别名到序数的映射
var educationOrdinals = map[string]int{
	"high_school": eduHighSchool,
	"highschool":  eduHighSchool,
	"高中":          eduHighSchool,
	"中专":          eduHighSchool,

	"associate": eduAssociate,
	"大专":        eduAssociate,
	"专科":        eduAssociate,

	"bachelor": eduBachelor,
	"本科":       eduBachelor,
	"学士":       eduBachelor,

	"master": eduMaster,
	"硕士":     eduMaster,
	"研究生":    eduMaster,

	"doctor": eduDoctor,
	"phd":    eduDoctor,
	"博士":     eduDoctor,
}

// EducationOrdinal 把学历token映射到序数刻度。
// 未知token返回 (0, false)，调用方应视为类型不可比。
func EducationOrdinal(token string) (int, bool) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	ord, ok := educationOrdinals[normalized]
	return ord, ok
}
