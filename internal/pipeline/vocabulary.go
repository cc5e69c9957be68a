package pipeline

import (
	"sort"
	"strings"
)

// Vocabulary 是单个特征列的词到索引映射，索引从 1 开始，0 保留给未知词和填充。
type Vocabulary map[string]int

// Tokenize 转为小写后按空白切分。
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// BuildVocabulary 收集所有文本中的不同词，按字典序分配索引。
func BuildVocabulary(texts []string) Vocabulary {
	seen := make(map[string]struct{})
	for _, t := range texts {
		for _, tok := range Tokenize(t) {
			seen[tok] = struct{}{}
		}
	}
	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)

	vocab := make(Vocabulary, len(words))
	for i, w := range words {
		vocab[w] = i + 1
	}
	return vocab
}

// Index 返回词的索引，未登录词返回 0。
func (v Vocabulary) Index(word string) int {
	return v[word]
}

// Encode 将文本切分并映射为索引序列。
func (v Vocabulary) Encode(text string) []int {
	toks := Tokenize(text)
	seq := make([]int, len(toks))
	for i, tok := range toks {
		seq[i] = v.Index(tok)
	}
	return seq
}

// Words 按索引顺序返回词表。
func (v Vocabulary) Words() []string {
	words := make([]string, len(v))
	for w, i := range v {
		if i >= 1 && i <= len(words) {
			words[i-1] = w
		}
	}
	return words
}
