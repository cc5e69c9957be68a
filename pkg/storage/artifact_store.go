package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"wordclass-go/internal/model"
	"wordclass-go/pkg/errs"
)

const (
	weightsObject      = "weights.json"
	vocabulariesObject = "vocabularies.json"
	labelsObject       = "labels.json"
	manifestObject     = "manifest.json"
)

// manifest 在三个块写完之后写入，记录各块的 sha256。读取时先读 manifest，
// 校验不通过说明三个块不是同一次保存写入的。
type manifest struct {
	Checksums map[string]string `json:"checksums"`
	SavedAt   time.Time         `json:"saved_at"`
}

// MinioArtifactStore 把模型单元保存为 <key>/ 下的四个对象。
type MinioArtifactStore struct {
	client *minio.Client
	bucket string
}

func NewMinioArtifactStore(client *minio.Client, bucket string) *MinioArtifactStore {
	return &MinioArtifactStore{client: client, bucket: bucket}
}

func blobObjects(blobs model.ArtifactBlobs) map[string][]byte {
	return map[string][]byte{
		weightsObject:      blobs.Weights,
		vocabulariesObject: blobs.Vocabularies,
		labelsObject:       blobs.Labels,
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newManifest(blobs model.ArtifactBlobs) manifest {
	m := manifest{Checksums: make(map[string]string, 3), SavedAt: time.Now().UTC()}
	for name, data := range blobObjects(blobs) {
		m.Checksums[name] = checksum(data)
	}
	return m
}

// verify 检查读到的三个块是否与 manifest 一致。
func (m manifest) verify(blobs model.ArtifactBlobs) error {
	for name, data := range blobObjects(blobs) {
		if m.Checksums[name] != checksum(data) {
			return errs.Validation("load_artifact", "object %s does not match the artifact manifest", name)
		}
	}
	return nil
}

// Put 依次写入三个块，最后写 manifest。
func (s *MinioArtifactStore) Put(ctx context.Context, key string, blobs model.ArtifactBlobs) error {
	if !blobs.Complete() {
		return errs.Validation("save_artifact", "artifact %s is missing a blob", key)
	}
	for name, data := range blobObjects(blobs) {
		if err := s.putObject(ctx, path.Join(key, name), data); err != nil {
			return err
		}
	}
	data, err := json.Marshal(newManifest(blobs))
	if err != nil {
		return fmt.Errorf("序列化 manifest 失败: %w", err)
	}
	return s.putObject(ctx, path.Join(key, manifestObject), data)
}

func (s *MinioArtifactStore) putObject(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return errs.Connection("save_artifact", fmt.Errorf("上传对象 %s 失败: %w", name, err))
	}
	return nil
}

// Get 读取 manifest 和三个块并校验。
func (s *MinioArtifactStore) Get(ctx context.Context, key string) (model.ArtifactBlobs, error) {
	raw, err := s.getObject(ctx, key, manifestObject)
	if err != nil {
		return model.ArtifactBlobs{}, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.ArtifactBlobs{}, errs.Validation("load_artifact", "artifact %s has an unreadable manifest", key)
	}

	var blobs model.ArtifactBlobs
	if blobs.Weights, err = s.getObject(ctx, key, weightsObject); err != nil {
		return model.ArtifactBlobs{}, err
	}
	if blobs.Vocabularies, err = s.getObject(ctx, key, vocabulariesObject); err != nil {
		return model.ArtifactBlobs{}, err
	}
	if blobs.Labels, err = s.getObject(ctx, key, labelsObject); err != nil {
		return model.ArtifactBlobs{}, err
	}
	if err := m.verify(blobs); err != nil {
		return model.ArtifactBlobs{}, err
	}
	return blobs, nil
}

func (s *MinioArtifactStore) getObject(ctx context.Context, key, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path.Join(key, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinioError(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinioError(key, err)
	}
	return data, nil
}

// classifyMinioError 把对象不存在映射为 NotFound，其余视为连接错误。
func classifyMinioError(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errs.NotFound("load_artifact", "artifact %s not found", key)
	}
	return errs.Connection("load_artifact", err)
}

// Location 返回写入元数据 path 字段的位置描述。
func (s *MinioArtifactStore) Location(key string) string {
	return fmt.Sprintf("minio://%s/%s/", s.bucket, key)
}
