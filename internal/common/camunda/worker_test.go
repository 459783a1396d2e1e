package camunda

import (
	"testing"

	"customer-insights/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
)

type recordingHandler struct {
	keys []int64
}

func (h *recordingHandler) Handle(client worker.JobClient, job entities.Job) {
	h.keys = append(h.keys, job.GetKey())
}

func TestRecover_PassesJobsThrough(t *testing.T) {
	h := &recordingHandler{}
	wrapped := Recover(h, nil, logger.NewTestLogger(t))

	wrapped(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 7}})
	wrapped(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 8}})

	assert.Equal(t, []int64{7, 8}, h.keys)
}

func TestStop_NilWorker(t *testing.T) {
	var w *CamundaWorker
	assert.NotPanics(t, w.Stop)
}
