package novel

import (
	"context"
	"errors"

	jsonpatch "github.com/evanphx/json-patch"

	"z-novel-writer/internal/domain/entity"
	apperrors "z-novel-writer/pkg/errors"
)

// ExportJSON 导出当前版本快照
func (o *Orchestrator) ExportJSON() ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return entity.EncodeSnapshot(o.novel)
}

// Import 用任意版本快照替换当前小说并立即保存，小说 ID 保持不变
func (o *Orchestrator) Import(ctx context.Context, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run(ctx, "import", false, func(ctx context.Context) error {
		n, _, err := entity.DecodeSnapshot(data)
		if err != nil {
			return snapshotError(err)
		}
		n.ID = o.novel.ID
		return o.commit(ctx, n)
	})
}

// ApplyPatch 按 RFC 6902 修改快照字段，例如 /chapters/0/title
func (o *Orchestrator) ApplyPatch(ctx context.Context, patchJSON []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run(ctx, "apply_patch", false, func(ctx context.Context) error {
		patch, err := jsonpatch.DecodePatch(patchJSON)
		if err != nil {
			return invalidParam("invalid json patch: %v", err)
		}
		doc, err := entity.EncodeSnapshot(o.novel)
		if err != nil {
			return err
		}
		patched, err := patch.Apply(doc)
		if err != nil {
			return invalidParam("failed to apply json patch: %v", err)
		}
		n, _, err := entity.DecodeSnapshot(patched)
		if err != nil {
			return snapshotError(err)
		}
		if n.ID != o.novel.ID {
			return invalidParam("id is immutable")
		}
		return o.commit(ctx, n)
	})
}

func snapshotError(err error) error {
	var snapErr *entity.SnapshotError
	if errors.As(err, &snapErr) {
		return apperrors.New(apperrors.CodeSnapshotInvalid, "invalid novel snapshot").WithDetail(snapErr.Error()).WithError(err)
	}
	return apperrors.Wrap(err, apperrors.CodeSnapshotInvalid, "invalid novel snapshot")
}
