package pipeline

// LabelMap 按首次出现顺序为标签分配稠密的类别 ID。
type LabelMap struct {
	ids    map[string]int
	labels []string
}

// NewLabelMap 创建一个空的 LabelMap。
func NewLabelMap() *LabelMap {
	return &LabelMap{ids: make(map[string]int)}
}

// LabelMapFromInverse 由逆映射（下标即类别 ID）重建 LabelMap。
func LabelMapFromInverse(labels []string) *LabelMap {
	m := NewLabelMap()
	for _, l := range labels {
		m.Encode(l)
	}
	return m
}

// Encode 返回标签的 ID，新标签追加到末尾。
func (m *LabelMap) Encode(label string) int {
	if id, ok := m.ids[label]; ok {
		return id
	}
	id := len(m.labels)
	m.ids[label] = id
	m.labels = append(m.labels, label)
	return id
}

// ID 查询已有标签的 ID。
func (m *LabelMap) ID(label string) (int, bool) {
	id, ok := m.ids[label]
	return id, ok
}

// Label 是逆映射：类别 ID 到原始标签。
func (m *LabelMap) Label(id int) (string, bool) {
	if id < 0 || id >= len(m.labels) {
		return "", false
	}
	return m.labels[id], true
}

// Len 返回类别数。
func (m *LabelMap) Len() int {
	return len(m.labels)
}

// Inverse 返回逆映射的副本。
func (m *LabelMap) Inverse() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}
