package domain

import (
	"strings"
	"time"
)

// Candidate 描述一次扫描得到的待重命名文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 隐藏文件永远不会成为 Candidate
type Candidate struct {
	AbsPath string
	RelPath string // 相对扫描根；单文件目标时等于 Name
	Dir     string
	Name    string // 含扩展名
	Ext     string // 原样保留大小写，例如 ".JPG"；无扩展名时为空
	Size    int64
	ModTime time.Time
}

// IsHidden 按平台约定（前导 '.'）判断文件/目录名是否隐藏，例如 .DS_Store。
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
