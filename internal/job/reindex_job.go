package job

import (
	"context"

	"github.com/lromeral/sitechat/internal/service"
)

// ReindexJob rebuilds the whole embedding corpus on schedule, keeping the
// index in sync with content edited outside the indexing hooks.
type ReindexJob struct {
	index *service.IndexService
}

func NewReindexJob(index *service.IndexService) *ReindexJob {
	return &ReindexJob{index: index}
}

func (j *ReindexJob) Name() string {
	return "full_reindex"
}

func (j *ReindexJob) Run(ctx context.Context) error {
	if j.index == nil {
		return nil
	}
	return j.index.ReindexAll(ctx)
}
