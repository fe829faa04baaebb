package domain

// DirGroup 是按所在目录聚合后的工作单元：冲突判定只在同一目录内有意义。
// 为了数据局部性，DirGroup 只保存下标（指向 []Candidate），避免复制结构体。
type DirGroup struct {
	Dir     string
	FileIdx []int
}
