// Package heuristic 提供基于关键词命中的基线分类器，与训练得到的模型完全独立。
package heuristic

import (
	"math"
	"sort"
	"strings"
)

const (
	// OtherCategory 是没有任何关键词命中时返回的类别。
	OtherCategory   = "other"
	otherConfidence = 0.3
	baseConfidence  = 0.5
	hitConfidence   = 0.1
	maxConfidence   = 0.95
)

// DefaultKeywords 在配置未提供关键词时使用。
var DefaultKeywords = map[string][]string{
	"technology": {"computer", "software", "code", "programming", "internet", "app", "data"},
	"sports":     {"football", "basketball", "game", "team", "match", "player", "score"},
	"food":       {"eat", "food", "restaurant", "cook", "recipe", "meal", "dinner"},
	"shopping":   {"buy", "shop", "price", "store", "sale", "milk", "bread"},
	"work":       {"meeting", "project", "deadline", "office", "report", "write"},
}

// Result 是一次基线预测的结果。
type Result struct {
	Category   string  `json:"predictedCategory"`
	Confidence float64 `json:"confidence"`
	Hits       int     `json:"hits"`
}

// Predictor 按关键词命中数选择类别。
type Predictor struct {
	categories []string
	keywords   map[string]map[string]struct{}
}

// NewPredictor 创建预测器，keywords 为空时使用 DefaultKeywords。
func NewPredictor(keywords map[string][]string) *Predictor {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	p := &Predictor{keywords: make(map[string]map[string]struct{}, len(keywords))}
	for category, words := range keywords {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[strings.ToLower(w)] = struct{}{}
		}
		p.keywords[category] = set
		p.categories = append(p.categories, category)
	}
	// 命中数相同时按类别名的字典序取第一个
	sort.Strings(p.categories)
	return p
}

// Predict 统计每个类别命中的关键词数，命中最多者胜出。
func (p *Predictor) Predict(text string) Result {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tokens[strings.Trim(tok, ".,!?;:\"'()")] = struct{}{}
	}

	best, bestHits := "", 0
	for _, category := range p.categories {
		hits := 0
		for kw := range p.keywords[category] {
			if _, ok := tokens[kw]; ok {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = category, hits
		}
	}

	if bestHits == 0 {
		return Result{Category: OtherCategory, Confidence: otherConfidence}
	}
	return Result{
		Category:   best,
		Confidence: math.Min(maxConfidence, baseConfidence+hitConfidence*float64(bestHits)),
		Hits:       bestHits,
	}
}
