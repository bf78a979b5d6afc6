package agent

import (
	"path"
	"sort"
	"strings"
)

// RenderTree lists files grouped by directory, directories sorted, root files first.
func RenderTree(folderName string, files []string) string {
	byDir := map[string][]string{}
	for _, f := range files {
		f = strings.ReplaceAll(f, "\\", "/")
		dir, name := path.Split(f)
		dir = strings.TrimSuffix(dir, "/")
		byDir[dir] = append(byDir[dir], name)
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var sb strings.Builder
	sb.WriteString("Project Structure:\n")
	sb.WriteString(folderName)
	sb.WriteString("\n")
	for _, dir := range dirs {
		if dir == "" {
			for _, name := range byDir[dir] {
				sb.WriteString(" |__ " + name + "\n")
			}
			continue
		}
		sb.WriteString("|-- " + dir + "/\n")
		for _, name := range byDir[dir] {
			sb.WriteString("|  |__ " + name + "\n")
		}
	}
	return sb.String()
}
