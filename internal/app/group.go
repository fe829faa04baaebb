package app

import (
	"sort"

	"github.com/John-Robertt/stampit/internal/domain"
)

// GroupByDir 把候选按所在目录分组为 DirGroup（DirGroup 只存 file index）。
//
// - groups 稳定排序：按 Dir 字典序
// - group 内 FileIdx 稳定排序：按 RelPath 字典序
func GroupByDir(files []domain.Candidate) []domain.DirGroup {
	index := make(map[string]int, 16)
	groups := make([]domain.DirGroup, 0, 16)

	for i := range files {
		dir := files[i].Dir
		if idx, ok := index[dir]; ok {
			groups[idx].FileIdx = append(groups[idx].FileIdx, i)
			continue
		}
		index[dir] = len(groups)
		groups = append(groups, domain.DirGroup{
			Dir:     dir,
			FileIdx: []int{i},
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Dir < groups[j].Dir })
	for i := range groups {
		sort.Slice(groups[i].FileIdx, func(a, b int) bool {
			ia := groups[i].FileIdx[a]
			ib := groups[i].FileIdx[b]
			return files[ia].RelPath < files[ib].RelPath
		})
	}
	return groups
}
