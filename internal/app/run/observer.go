package run

import (
	"time"

	"github.com/John-Robertt/stampit/internal/config"
	"github.com/John-Robertt/stampit/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：CLI 的 keepalive ticker 与事件可能并发。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（scan、resolve、plan、exec）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在执行阶段每处理完一个文件时调用（按执行顺序，idx 从 1 开始）。
	OnItemDone(idx, total int, res domain.FileResult, dur time.Duration)
}
