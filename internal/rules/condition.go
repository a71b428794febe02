// Package rules 实现筛选条件树的解析与求值。
// 条件树由逻辑组合节点(and/or/not)和叶子比较节点构成，
// 在入口处一次性解析为类型化结构，求值阶段不再接触原始JSON。
package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LogicOp 逻辑组合算子
type LogicOp string

const (
	LogicAnd LogicOp = "and"
	LogicOr  LogicOp = "or"
	LogicNot LogicOp = "not"
)

// Operator 叶子节点的比较算子
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpGt         Operator = "gt"
	OpLt         Operator = "lt"
	OpGte        Operator = "gte"
	OpLte        Operator = "lte"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
)

// Node 条件树节点，Group 和 Leaf 之一
type Node interface {
	isNode()
}

// Group 逻辑组合节点
type Group struct {
	Op       LogicOp
	Children []Node
}

func (Group) isNode() {}

// Leaf 叶子比较节点
type Leaf struct {
	Field string
	Op    Operator
	Value interface{}
}

func (Leaf) isNode() {}

// rawNode 条件JSON的中间形态：组合节点带 conditions，叶子节点带 field
type rawNode struct {
	Operator   string          `json:"operator"`
	Conditions json.RawMessage `json:"conditions"`
	Field      string          `json:"field"`
	Value      interface{}     `json:"value"`
}

var validOperators = map[Operator]bool{
	OpEq: true, OpNe: true, OpGt: true, OpLt: true, OpGte: true, OpLte: true,
	OpIn: true, OpNotIn: true, OpContains: true, OpStartsWith: true, OpEndsWith: true,
}

// Decode 解析条件配置JSON为类型化条件树。
// 任何结构问题（未知算子、叶子缺字段、conditions非数组）都在此处报错，
// 避免把坏配置带进求值阶段。
func Decode(data []byte) (Node, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("条件配置为空")
	}
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("解析条件配置失败: %w", err)
	}
	return decodeRaw(&raw)
}

func decodeRaw(raw *rawNode) (Node, error) {
	op := LogicOp(strings.ToLower(strings.TrimSpace(raw.Operator)))

	// 带conditions的是组合节点
	if len(raw.Conditions) > 0 && string(raw.Conditions) != "null" {
		if op != LogicAnd && op != LogicOr && op != LogicNot {
			return nil, fmt.Errorf("未知的逻辑算子: %q", raw.Operator)
		}
		var rawChildren []rawNode
		if err := json.Unmarshal(raw.Conditions, &rawChildren); err != nil {
			return nil, fmt.Errorf("conditions必须是数组: %w", err)
		}
		children := make([]Node, 0, len(rawChildren))
		for i := range rawChildren {
			child, err := decodeRaw(&rawChildren[i])
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return Group{Op: op, Children: children}, nil
	}

	// 叶子节点
	if raw.Field == "" {
		return nil, fmt.Errorf("叶子条件缺少field")
	}
	leafOp := Operator(strings.ToLower(strings.TrimSpace(raw.Operator)))
	if !validOperators[leafOp] {
		return nil, fmt.Errorf("未知的比较算子: %q (field=%s)", raw.Operator, raw.Field)
	}
	return Leaf{Field: strings.ToLower(strings.TrimSpace(raw.Field)), Op: leafOp, Value: raw.Value}, nil
}
