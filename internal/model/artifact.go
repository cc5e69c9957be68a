package model

// ArtifactBlobs 是一个模型产物的三个键值块，必须作为一个整体写入和读取。
type ArtifactBlobs struct {
	Weights      []byte
	Vocabularies []byte
	Labels       []byte
}

// Complete 报告三个块是否都存在。
func (b ArtifactBlobs) Complete() bool {
	return len(b.Weights) > 0 && len(b.Vocabularies) > 0 && len(b.Labels) > 0
}
