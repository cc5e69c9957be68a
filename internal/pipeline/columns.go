// Package pipeline 定义了从数据表到训练语料的特征构建流程。
package pipeline

import (
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
)

// idColumn 是行标识列，不参与建模。
const idColumn = "id"

// labelNames 是被视为标签列的列名（区分大小写，精确匹配）。
var labelNames = map[string]struct{}{
	"category": {},
	"label":    {},
	"class":    {},
	"target":   {},
}

// Columns 是一次列分类的结果。
type Columns struct {
	Features []string `json:"features"`
	Label    string   `json:"label"`
}

// ClassifyColumns 遍历一次 schema，选出唯一的标签列和其余特征列。
func ClassifyColumns(schema []model.Column) (Columns, error) {
	var cols Columns
	firstNonID := ""
	for _, c := range schema {
		if c.Name == idColumn {
			continue
		}
		if firstNonID == "" {
			firstNonID = c.Name
		}
		if cols.Label == "" && isLabelCandidate(c) {
			cols.Label = c.Name
			continue
		}
		cols.Features = append(cols.Features, c.Name)
	}

	if cols.Label == "" {
		if firstNonID == "" {
			return Columns{}, errs.Configuration("classify_columns", "schema has no usable columns")
		}
		cols.Label = firstNonID
		cols.Features = removeColumn(cols.Features, firstNonID)
	}
	if len(cols.Features) == 0 {
		return Columns{}, errs.Configuration("classify_columns", "no feature columns besides label %q", cols.Label)
	}
	return cols, nil
}

func isLabelCandidate(c model.Column) bool {
	if _, ok := labelNames[c.Name]; ok {
		return true
	}
	return c.IsPrimaryKey()
}

func removeColumn(list []string, name string) []string {
	out := list[:0]
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
