package domain

// RenamePlan 规划一次同目录重命名（只描述 src/dst；真正执行在 run 阶段串行完成）。
//
// Status 取值：
// - FileStatusPlanned：需要重命名（DstAbs 有效）
// - FileStatusUnchanged：已经是目标名（幂等）
// - FileStatusSkipped：不处理（ErrorCode 说明原因）
type RenamePlan struct {
	SrcAbs string
	DstAbs string
	Stamp  Stamp

	Status    string
	ErrorCode string
	ErrorMsg  string
}
