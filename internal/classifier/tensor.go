// Package classifier 实现多输入词嵌入分类网络的训练、评估、持久化与预测。
package classifier

import "wordclass-go/internal/pipeline"

// Dataset 是编码后的训练数据：Inputs[branch][row] 为未填充的词索引序列。
type Dataset struct {
	Inputs [][][]int
	Labels []int
}

// Len 返回样本数。
func (d Dataset) Len() int {
	return len(d.Labels)
}

// Pad 将一批序列右侧补 0 到该批次自身的最大长度，最短为 1。
func Pad(seqs [][]int) [][]int {
	maxLen := 1
	for _, s := range seqs {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	out := make([][]int, len(seqs))
	for i, s := range seqs {
		row := make([]int, maxLen)
		copy(row, s)
		out[i] = row
	}
	return out
}

// batch 取出 idx 指定的行，并按批次逐分支填充。
func (d Dataset) batch(idx []int) ([][][]int, []int) {
	inputs := make([][][]int, len(d.Inputs))
	for b, branch := range d.Inputs {
		seqs := make([][]int, len(idx))
		for i, r := range idx {
			seqs[i] = branch[r]
		}
		inputs[b] = Pad(seqs)
	}
	labels := make([]int, len(idx))
	for i, r := range idx {
		labels[i] = d.Labels[r]
	}
	return inputs, labels
}

// EncodeCorpus 用给定的列顺序和词表把语料编码为 Dataset。
func EncodeCorpus(corpus *pipeline.Corpus, columns []string, vocabs map[string]pipeline.Vocabulary) Dataset {
	ds := Dataset{
		Inputs: make([][][]int, len(columns)),
		Labels: append([]int(nil), corpus.Labels...),
	}
	for b, col := range columns {
		vocab := vocabs[col]
		seqs := make([][]int, corpus.Len())
		for r, f := range corpus.Features {
			seqs[r] = vocab.Encode(f[col])
		}
		ds.Inputs[b] = seqs
	}
	return ds
}

// encodeFields 将单条输入按列编码为一个填充好的批次。
func encodeFields(fields map[string]string, columns []string, vocabs map[string]pipeline.Vocabulary) [][][]int {
	inputs := make([][][]int, len(columns))
	for b, col := range columns {
		inputs[b] = Pad([][]int{vocabs[col].Encode(fields[col])})
	}
	return inputs
}
