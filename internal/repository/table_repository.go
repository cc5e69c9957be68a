// Package repository 定义了与数据库和缓存进行数据交换的接口和实现。
package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
)

// TableRepository 定义了对带标签文本表的只读操作。
// 句柄按调用传入，仓库本身不持有连接。
type TableRepository interface {
	Schema(db *gorm.DB) ([]model.Column, error)
	Count(db *gorm.DB) (int64, error)
	Batch(db *gorm.DB, columns []model.Column, offset, limit int) ([]model.Row, error)
	CategoryDistribution(db *gorm.DB, column string) (map[string]int64, error)
}

type tableRepository struct {
	table string
}

// NewTableRepository 创建一个读取指定表的 TableRepository。
func NewTableRepository(table string) TableRepository {
	return &tableRepository{table: table}
}

// Schema 按表中顺序返回列描述。
func (r *tableRepository) Schema(db *gorm.DB) ([]model.Column, error) {
	if !db.Migrator().HasTable(r.table) {
		return nil, errs.Query("schema", fmt.Errorf("table %s does not exist", r.table))
	}
	types, err := db.Migrator().ColumnTypes(r.table)
	if err != nil {
		return nil, errs.Query("schema", err)
	}

	columns := make([]model.Column, 0, len(types))
	for _, ct := range types {
		col := model.Column{
			Name: ct.Name(),
			Type: ct.DatabaseTypeName(),
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		}
		if pk, ok := ct.PrimaryKey(); ok && pk {
			col.Key = model.KeyPrimary
		}
		col.Kind = model.KindForType(col.Type)
		columns = append(columns, col)
	}
	return columns, nil
}

// Count 返回表的总行数。
func (r *tableRepository) Count(db *gorm.DB) (int64, error) {
	var n int64
	if err := db.Table(r.table).Count(&n).Error; err != nil {
		return 0, errs.Query("count", err)
	}
	return n, nil
}

// Batch 按主键顺序读取 offset 起最多 limit 行，并按 schema 转换为带类型的记录。
func (r *tableRepository) Batch(db *gorm.DB, columns []model.Column, offset, limit int) ([]model.Row, error) {
	q := db.Table(r.table)
	for _, col := range columns {
		if col.IsPrimaryKey() {
			q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col.Name}})
			break
		}
	}

	var raw []map[string]interface{}
	if err := q.Offset(offset).Limit(limit).Find(&raw).Error; err != nil {
		return nil, errs.Query("batch", err)
	}

	rows := make([]model.Row, 0, len(raw))
	for _, rec := range raw {
		row := make(model.Row, len(columns))
		for _, col := range columns {
			row[col.Name] = col.Convert(rec[col.Name])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CategoryDistribution 统计某列各取值的行数，NULL 值不计入。
func (r *tableRepository) CategoryDistribution(db *gorm.DB, column string) (map[string]int64, error) {
	var groups []struct {
		GroupValue *string
		GroupTotal int64
	}
	quoted := db.Statement.Quote(column)
	err := db.Table(r.table).
		Select(quoted + " AS group_value, COUNT(*) AS group_total").
		Group(quoted).
		Scan(&groups).Error
	if err != nil {
		return nil, errs.Query("category_distribution", err)
	}

	dist := make(map[string]int64, len(groups))
	for _, g := range groups {
		if g.GroupValue == nil {
			continue
		}
		dist[*g.GroupValue] += g.GroupTotal
	}
	return dist, nil
}
