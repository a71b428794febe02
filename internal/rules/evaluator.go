package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"resume-screen-go/internal/types"
)

// Evaluator 在一份候选人信息上求值条件树，并记录每个叶子的命中情况。
// 求值是纯内存操作，不做任何IO。
type Evaluator struct {
	info       *types.CandidateInfo
	resumeText string
	matched    []string
	unmatched  []string
}

// NewEvaluator 创建求值器。resumeText 供 keywords 字段做全文匹配。
func NewEvaluator(info *types.CandidateInfo, resumeText string) *Evaluator {
	return &Evaluator{info: info, resumeText: resumeText}
}

// Matched 返回命中的叶子条件描述
func (e *Evaluator) Matched() []string { return e.matched }

// Unmatched 返回未命中的叶子条件描述
func (e *Evaluator) Unmatched() []string { return e.unmatched }

// Evaluate 求值整棵条件树。
// 约定：空的 and/or 组恒为 true；not 是对子条件 and 的取反；
// 字段缺失或类型无法转换的叶子为 false。
func (e *Evaluator) Evaluate(node Node) bool {
	switch n := node.(type) {
	case Group:
		return e.evaluateGroup(n)
	case Leaf:
		ok := e.evaluateLeaf(n)
		desc := describeLeaf(n)
		if ok {
			e.matched = append(e.matched, desc)
		} else {
			e.unmatched = append(e.unmatched, desc)
		}
		return ok
	default:
		return false
	}
}

func (e *Evaluator) evaluateGroup(g Group) bool {
	switch g.Op {
	case LogicAnd:
		// 不短路，保证每个叶子都留下命中记录
		ok := true
		for _, child := range g.Children {
			if !e.Evaluate(child) {
				ok = false
			}
		}
		return ok
	case LogicOr:
		if len(g.Children) == 0 {
			return true
		}
		hit := false
		for _, child := range g.Children {
			if e.Evaluate(child) {
				hit = true
			}
		}
		return hit
	case LogicNot:
		// not 等价于对子条件整体 and 后取反
		inner := Group{Op: LogicAnd, Children: g.Children}
		return !e.evaluateGroup(inner)
	default:
		return false
	}
}

// evaluateLeaf 求值单个叶子。先解析候选人侧的实际值，再按算子比较。
func (e *Evaluator) evaluateLeaf(leaf Leaf) bool {
	actual, ok := e.resolveField(leaf.Field)
	if !ok {
		return false
	}

	switch leaf.Op {
	case OpEq, OpNe, OpGt, OpLt, OpGte, OpLte:
		return e.compare(leaf, actual)
	case OpIn, OpNotIn:
		return e.membership(leaf, actual)
	case OpContains:
		return e.contains(leaf, actual)
	case OpStartsWith, OpEndsWith:
		return e.affix(leaf, actual)
	default:
		return false
	}
}

// resolveField 取出候选人侧字段的实际值。
// 返回 (nil, false) 表示字段缺失，整个叶子判负。
func (e *Evaluator) resolveField(field string) (interface{}, bool) {
	switch field {
	case "name":
		return nonEmpty(e.info.Name)
	case "phone":
		return nonEmpty(e.info.Phone)
	case "email":
		return nonEmpty(e.info.Email)
	case "education_level":
		return nonEmpty(e.info.EducationLevel)
	case "school":
		return nonEmpty(e.info.School)
	case "major":
		return nonEmpty(e.info.Major)
	case "graduation_date":
		return nonEmpty(e.info.GraduationDate)
	case "work_years":
		return e.info.WorkYears, true
	case "skills":
		if len(e.info.Skills) == 0 {
			return nil, false
		}
		return e.info.Skills, true
	case "self_evaluation":
		return nonEmpty(e.info.SelfEvaluation)
	case "school_tier":
		if e.info.School == "" {
			return nil, false
		}
		return ClassifySchoolTier(e.info.School), true
	case "keywords":
		return nonEmpty(e.resumeText)
	default:
		return nil, false
	}
}

func nonEmpty(s string) (interface{}, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	return s, true
}

// compare 处理 eq/ne/gt/lt/gte/lte。
// 两侧都能转成数值（学历token也算）时走数值比较，否则eq/ne退化为
// 大小写不敏感的字符串比较，序比较则判负。
func (e *Evaluator) compare(leaf Leaf, actual interface{}) bool {
	aNum, aOK := toNumber(actual)
	tNum, tOK := toNumber(leaf.Value)
	if aOK && tOK {
		switch leaf.Op {
		case OpEq:
			return aNum == tNum
		case OpNe:
			return aNum != tNum
		case OpGt:
			return aNum > tNum
		case OpLt:
			return aNum < tNum
		case OpGte:
			return aNum >= tNum
		case OpLte:
			return aNum <= tNum
		}
	}

	aStr, aSOK := toString(actual)
	tStr, tSOK := toString(leaf.Value)
	if !aSOK || !tSOK {
		return false
	}
	switch leaf.Op {
	case OpEq:
		return strings.EqualFold(strings.TrimSpace(aStr), strings.TrimSpace(tStr))
	case OpNe:
		return !strings.EqualFold(strings.TrimSpace(aStr), strings.TrimSpace(tStr))
	default:
		// 字符串不支持序比较
		return false
	}
}

// membership 处理 in/not_in。目标是列表时做成员判断；
// 目标是字符串时退化为子串判断。
func (e *Evaluator) membership(leaf Leaf, actual interface{}) bool {
	aStr, ok := toString(actual)
	if !ok {
		return false
	}
	aStr = strings.ToLower(strings.TrimSpace(aStr))

	found := false
	switch target := leaf.Value.(type) {
	case []interface{}:
		for _, item := range target {
			if s, ok := toString(item); ok && strings.ToLower(strings.TrimSpace(s)) == aStr {
				found = true
				break
			}
		}
	case string:
		found = strings.Contains(strings.ToLower(target), aStr)
	default:
		return false
	}

	if leaf.Op == OpNotIn {
		return !found
	}
	return found
}

// contains 处理 contains。候选人侧是列表时判断列表含目标元素；
// 是字符串时判断子串。
func (e *Evaluator) contains(leaf Leaf, actual interface{}) bool {
	tStr, ok := toString(leaf.Value)
	if !ok {
		return false
	}
	tStr = strings.ToLower(strings.TrimSpace(tStr))

	switch a := actual.(type) {
	case []string:
		for _, item := range a {
			if strings.ToLower(strings.TrimSpace(item)) == tStr {
				return true
			}
		}
		return false
	default:
		aStr, ok := toString(actual)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(aStr), tStr)
	}
}

func (e *Evaluator) affix(leaf Leaf, actual interface{}) bool {
	aStr, aOK := toString(actual)
	tStr, tOK := toString(leaf.Value)
	if !aOK || !tOK {
		return false
	}
	aStr = strings.ToLower(strings.TrimSpace(aStr))
	tStr = strings.ToLower(strings.TrimSpace(tStr))
	if leaf.Op == OpStartsWith {
		return strings.HasPrefix(aStr, tStr)
	}
	return strings.HasSuffix(aStr, tStr)
}

// toNumber 宽松数值转换：数字、数字字符串、学历token均可
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		if ord, ok := EducationOrdinal(n); ok {
			return float64(ord), true
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

// describeLeaf 生成叶子条件的可读描述，用于通过/淘汰原因
func describeLeaf(leaf Leaf) string {
	return fmt.Sprintf("%s %s %v", leaf.Field, leaf.Op, leaf.Value)
}
