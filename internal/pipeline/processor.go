// Package pipeline 定义了后台重排任务的处理流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"hierarchy-go/pkg/hierarchy"
	"hierarchy-go/pkg/log"
	"hierarchy-go/pkg/metrics"
	"hierarchy-go/pkg/tasks"
)

// Rekeyer 重新计算实体子树的排序键，service.EntityService 满足该接口。
type Rekeyer interface {
	Rekey(ctx context.Context, id string) (int, error)
}

// Processor 封装了重排任务处理的依赖和逻辑。
type Processor struct {
	entities Rekeyer
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(entities Rekeyer) *Processor {
	return &Processor{entities: entities}
}

// Process 处理一个子树任务：校验子树排序键（更新时已同步重排，通常没有需要保存的键）并刷新整棵子树的索引。
// 实体已被删除时任务视为完成。
func (p *Processor) Process(ctx context.Context, task tasks.RekeyTask) error {
	log.Infof("[Processor] 开始重排子树, EntityID: %s, Bundle: %s, Reason: %s", task.EntityID, task.Bundle, task.Reason)

	saved, err := p.entities.Rekey(ctx, task.EntityID)
	if errors.Is(err, hierarchy.ErrNotFound) {
		log.Warnf("[Processor] 实体已不存在，跳过重排, EntityID: %s", task.EntityID)
		metrics.RekeyTasksTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	if errors.Is(err, hierarchy.ErrCycle) || errors.Is(err, hierarchy.ErrDepthExceeded) {
		// 数据本身有问题，重试不会成功
		log.Errorf("[Processor] 子树结构异常，放弃重排, EntityID: %s, Error: %v", task.EntityID, err)
		metrics.RekeyTasksTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	if err != nil {
		metrics.RekeyTasksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("重排子树失败: %w", err)
	}

	metrics.RekeyTasksTotal.WithLabelValues("success").Inc()
	metrics.RekeySavedTotal.Add(float64(saved))

	log.Infof("[Processor] 子树重排完成, EntityID: %s, 更新数量: %d", task.EntityID, saved)
	return nil
}
