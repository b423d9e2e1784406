package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type captureRecorder struct {
	noopRecorder
	mu     sync.Mutex
	ops    []string
	tools  []string
	stages []string
}

func (c *captureRecorder) IncDBOpTotal(op string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.ops = append(c.ops, op)
	}
}

func (c *captureRecorder) IncToolTotal(tool string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !success {
		tool += ":failed"
	}
	c.tools = append(c.tools, tool)
}

func (c *captureRecorder) IncStageTotal(stage, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = append(c.stages, stage+"="+status)
}

func TestTimersReportToRecorder(t *testing.T) {
	rec := &captureRecorder{}
	SetRecorder(rec)
	t.Cleanup(func() { SetRecorder(nil) })

	TimeOp("db_upsert_node")(true)
	TimeOp("db_upsert_edge")(false)
	TimeTool("query_context")(false)
	Default().IncStageTotal("vector_search", "completed")

	assert.Equal(t, []string{"db_upsert_node"}, rec.ops)
	assert.Equal(t, []string{"query_context:failed"}, rec.tools)
	assert.Equal(t, []string{"vector_search=completed"}, rec.stages)
}

func TestInitDisabledKeepsNoop(t *testing.T) {
	SetRecorder(nil)
	assert.Nil(t, Init(Config{}))
	_, ok := Default().(*noopRecorder)
	assert.True(t, ok)
}
