package domain

// DirState 描述某个目录的现状（只做 ReadDir，不读内容）。
type DirState struct {
	Dir string

	// ExistingNames 是目录内现有条目名集合（含隐藏文件与子目录），用于 O(1) 冲突判定。
	ExistingNames map[string]struct{}
}
