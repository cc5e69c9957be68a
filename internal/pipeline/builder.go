package pipeline

import (
	"context"
	"fmt"

	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
	"wordclass-go/pkg/log"
)

// DefaultPageSize 是语料分页读取的默认页大小。
const DefaultPageSize = 100

// Source 是特征构建所需的网关读操作。
type Source interface {
	Schema(ctx context.Context) ([]model.Column, error)
	Count(ctx context.Context) (int64, error)
	Batch(ctx context.Context, offset, limit int) ([]model.Row, error)
}

// Corpus 是一次完整加载得到的训练语料。
type Corpus struct {
	Schema  []model.Column
	Columns Columns
	// Features 中每行只包含非空的特征值，缺失的列按空串处理。
	Features     []map[string]string
	Labels       []int
	LabelMap     *LabelMap
	Vocabularies map[string]Vocabulary
	// TotalRows 是加载前 count() 返回的行数，Dropped 是因标签为空被丢弃的行数。
	TotalRows int64
	Dropped   int
}

// Len 返回可用于训练的行数。
func (c *Corpus) Len() int {
	return len(c.Labels)
}

// Texts 返回某一特征列在每行上的文本。
func (c *Corpus) Texts(column string) []string {
	out := make([]string, len(c.Features))
	for i, f := range c.Features {
		out[i] = f[column]
	}
	return out
}

// Builder 串行地从 Source 拉取全部数据并构建语料。
type Builder struct {
	source   Source
	pageSize int
}

// NewBuilder 创建一个新的 Builder 实例。
func NewBuilder(source Source, pageSize int) *Builder {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Builder{source: source, pageSize: pageSize}
}

// Build 依次执行：获取 schema、列分类、分页读取、构建词表。
func (b *Builder) Build(ctx context.Context) (*Corpus, error) {
	schema, err := b.source.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取 schema 失败: %w", err)
	}
	cols, err := ClassifyColumns(schema)
	if err != nil {
		return nil, err
	}
	log.Infow("[Builder] 列分类完成", "features", cols.Features, "label", cols.Label)

	corpus, err := b.Ingest(ctx, cols)
	if err != nil {
		return nil, err
	}
	corpus.Schema = schema

	corpus.Vocabularies = make(map[string]Vocabulary, len(cols.Features))
	for _, col := range cols.Features {
		corpus.Vocabularies[col] = BuildVocabulary(corpus.Texts(col))
	}
	log.Infow("[Builder] 语料构建完成",
		"rows", corpus.Len(),
		"dropped", corpus.Dropped,
		"classes", corpus.LabelMap.Len(),
	)
	return corpus, nil
}

// Ingest 按固定页大小逐页读取，短页或累计偏移达到总数时停止。
func (b *Builder) Ingest(ctx context.Context, cols Columns) (*Corpus, error) {
	total, err := b.source.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取记录总数失败: %w", err)
	}

	corpus := &Corpus{
		Columns:   cols,
		LabelMap:  NewLabelMap(),
		TotalRows: total,
	}

	offset := 0
	for int64(offset) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := b.source.Batch(ctx, offset, b.pageSize)
		if err != nil {
			return nil, fmt.Errorf("读取第 %d 行起的数据失败: %w", offset, err)
		}
		for _, row := range rows {
			corpus.add(row)
		}
		offset += len(rows)
		log.Debugf("[Builder] 已读取 %d/%d 行", offset, total)
		if len(rows) < b.pageSize {
			break
		}
	}

	if corpus.Len() == 0 {
		return nil, errs.Configuration("ingest", "table has no rows with a non-null %q label", cols.Label)
	}
	return corpus, nil
}

func (c *Corpus) add(row model.Row) {
	label := row.Get(c.Columns.Label)
	if label.IsNull() {
		c.Dropped++
		return
	}
	features := make(map[string]string, len(c.Columns.Features))
	for _, col := range c.Columns.Features {
		v := row.Get(col)
		if v.IsNull() {
			continue
		}
		features[col] = v.Text()
	}
	c.Features = append(c.Features, features)
	c.Labels = append(c.Labels, c.LabelMap.Encode(label.Text()))
}
