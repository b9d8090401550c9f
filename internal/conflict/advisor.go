package conflict

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Category selects the advice given for a file
type Category string

const (
	CategoryCode     Category = "code"
	CategoryConfig   Category = "config"
	CategoryMarkdown Category = "markdown"
	CategoryGeneric  Category = "generic"
)

var languages = map[string]string{
	".java":       "Java",
	".py":         "Python",
	".js":         "JavaScript",
	".ts":         "TypeScript",
	".jsx":        "React JSX",
	".tsx":        "React TSX",
	".vue":        "Vue",
	".xml":        "XML",
	".yml":        "YAML",
	".yaml":       "YAML",
	".json":       "JSON",
	".md":         "Markdown",
	".sql":        "SQL",
	".sh":         "Shell",
	".bash":       "Bash",
	".properties": "Properties",
	".txt":        "Text",
}

var categories = map[string]Category{
	".java": CategoryCode,
	".py":   CategoryCode,
	".js":   CategoryCode,
	".ts":   CategoryCode,
	".xml":  CategoryConfig,
	".yml":  CategoryConfig,
	".yaml": CategoryConfig,
	".json": CategoryConfig,
	".md":   CategoryMarkdown,
}

// Hunk is one conflict block
type Hunk struct {
	// Line is the 1-based line of the opening marker
	Line   int
	Ours   int
	Theirs int
}

// Dominant names the side contributing more lines to the hunk
func (h Hunk) Dominant() string {
	switch {
	case h.Ours > h.Theirs:
		return "ours"
	case h.Theirs > h.Ours:
		return "theirs"
	default:
		return "even"
	}
}

// FileAdvice is the analysis of one conflicted file
type FileAdvice struct {
	Path     string
	Language string
	Category Category

	Starts     int
	Separators int
	Ends       int
	Hunks      []Hunk

	Oversize bool
	Missing  bool

	Suggestions []string
}

// MarkersValid reports whether every block is opened, split and closed
func (f FileAdvice) MarkersValid() bool {
	return f.Starts == f.Separators && f.Separators == f.Ends
}

// Advice is the full read-only guidance for a conflicted merge
type Advice struct {
	Source      string
	Target      string
	Files       []FileAdvice
	TotalBlocks int
	Commands    []string
}

// Advise analyses a snapshot. It does not touch the repository.
func Advise(snap Snapshot) Advice {
	advice := Advice{Source: snap.Source, Target: snap.Target}
	for _, file := range snap.Files {
		fa := analyzeFile(file)
		advice.TotalBlocks += len(fa.Hunks)
		advice.Files = append(advice.Files, fa)
	}
	advice.Commands = resolutionCommands(snap)
	return advice
}

func analyzeFile(file FileSnapshot) FileAdvice {
	ext := strings.ToLower(filepath.Ext(file.Path))
	fa := FileAdvice{
		Path:     file.Path,
		Language: languages[ext],
		Category: categories[ext],
		Oversize: file.Oversize,
		Missing:  file.Missing,
	}
	if fa.Language == "" {
		fa.Language = "Unknown"
	}
	if fa.Category == "" {
		fa.Category = CategoryGeneric
	}

	switch {
	case file.Missing:
		fa.Suggestions = []string{
			"the file was deleted on one side and changed on the other",
			fmt.Sprintf("keep it with `git add %s` or drop it with `git rm %s`", file.Path, file.Path),
		}
		return fa
	case file.Oversize:
		fa.Suggestions = []string{
			fmt.Sprintf("file is too large to analyse (%.1f MB), review the conflict manually", float64(file.Size)/(1024*1024)),
		}
		return fa
	}

	scanMarkers(&fa, file.Content)

	if !fa.MarkersValid() {
		fa.Suggestions = []string{
			fmt.Sprintf("conflict markers are incomplete (%d start, %d separator, %d end), check the file by hand",
				fa.Starts, fa.Separators, fa.Ends),
		}
		return fa
	}
	if len(fa.Hunks) == 0 {
		fa.Suggestions = []string{"no conflict markers found; the conflict is in file mode or type"}
		return fa
	}
	fa.Suggestions = categorySuggestions(fa)
	return fa
}

// scanMarkers counts markers and measures each side of every hunk.
// diff3 base sections (|||||||) are counted on neither side.
func scanMarkers(fa *FileAdvice, content string) {
	const (
		outside = iota
		inOurs
		inBase
		inTheirs
	)
	state := outside
	var hunk Hunk

	for i, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "<<<<<<<"):
			fa.Starts++
			hunk = Hunk{Line: i + 1}
			state = inOurs
		case strings.HasPrefix(line, "|||||||") && state == inOurs:
			state = inBase
		case strings.HasPrefix(line, "=======") && (state == inOurs || state == inBase):
			fa.Separators++
			state = inTheirs
		case strings.HasPrefix(line, ">>>>>>>"):
			fa.Ends++
			if state == inTheirs {
				fa.Hunks = append(fa.Hunks, hunk)
			}
			state = outside
		default:
			switch state {
			case inOurs:
				hunk.Ours++
			case inTheirs:
				hunk.Theirs++
			}
		}
	}
}

func categorySuggestions(fa FileAdvice) []string {
	var s []string
	for _, h := range fa.Hunks {
		var side string
		switch h.Dominant() {
		case "ours":
			side = "target side dominates"
		case "theirs":
			side = "source side dominates"
		default:
			side = "both sides changed equally"
		}
		s = append(s, fmt.Sprintf("hunk at line %d: %d line(s) ours, %d line(s) theirs, %s", h.Line, h.Ours, h.Theirs, side))
	}

	switch fa.Category {
	case CategoryCode:
		s = append(s,
			"search for <<<<<<< to find each conflict",
			fmt.Sprintf("make sure the merged %s still compiles", fa.Language),
			"the upper block is the target branch, the lower block is the source branch",
			"merge duplicate imports and confirm which method signature wins",
		)
	case CategoryConfig:
		s = append(s,
			"configuration conflicts usually need a manual merge",
			"check whether the difference is environment specific (dev, test, prod)",
			fmt.Sprintf("keep the %s formatting valid after removing the markers", fa.Language),
		)
	case CategoryMarkdown:
		s = append(s,
			"compare both versions of the text and keep or combine the content",
		)
	default:
		s = append(s,
			"pick the version to keep or combine them",
			"remove the conflict markers (<<<<<<<, =======, >>>>>>>)",
			fmt.Sprintf("mark it resolved with `git add %s`", fa.Path),
		)
	}
	return s
}

// resolutionCommands reproduces the merge and lists the usual resolutions.
// The repository is already restored when these are shown.
func resolutionCommands(snap Snapshot) []string {
	cmds := []string{
		"git checkout " + snap.Target,
		"git merge --no-ff " + snap.Source,
	}
	for _, f := range snap.Files {
		cmds = append(cmds, "git checkout --ours "+f.Path)
	}
	for _, f := range snap.Files {
		cmds = append(cmds, "git checkout --theirs "+f.Path)
	}
	for _, f := range snap.Files {
		cmds = append(cmds, "git add "+f.Path)
	}
	cmds = append(cmds, "git merge --abort")
	return cmds
}
