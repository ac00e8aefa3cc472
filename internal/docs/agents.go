// Package docs parses AGENTS.md / CLAUDE.md-style repository guides and
// attaches what they describe to the RepoMap nodes they document.
package docs

import (
	"regexp"
	"strings"

	"github.com/codegraph/indexer/internal/repomap"
)

// AgentsDoc is a parsed navigation guide for one repo or module.
type AgentsDoc struct {
	Path             string
	RepoID           string
	Module           string
	Title            string
	Description      string
	EntryPoints      []string
	MentionedSymbols []string
	MentionedFiles   []string
	Sections         []Section
}

// Section is one heading-delimited block of a navigation guide.
type Section struct {
	Heading     string
	HeadingPath string // full path, e.g. "Key Patterns > Import Pattern"
	Level       int
	Content     string
	StartLine   int
	EndLine     int
}

// ParseAgentsMD parses the contents of one AGENTS.md/CLAUDE.md file.
func ParseAgentsMD(content []byte, filePath, repoID string) (*AgentsDoc, error) {
	text := string(content)
	lines := strings.Split(text, "\n")

	doc := &AgentsDoc{
		Path:   filePath,
		RepoID: repoID,
	}

	if parts := strings.Split(filePath, "/"); len(parts) > 1 {
		doc.Module = parts[0]
	}

	var currentSection *Section
	var headingStack []string

	headingRe := regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	inlineCodeRe := regexp.MustCompile("`([^`]+)`")

	justSawH1 := false

	for i, line := range lines {
		if matches := headingRe.FindStringSubmatch(line); matches != nil {
			level := len(matches[1])
			heading := matches[2]

			for len(headingStack) >= level {
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingStack = append(headingStack, heading)

			if currentSection != nil {
				currentSection.EndLine = i - 1
				doc.Sections = append(doc.Sections, *currentSection)
			}

			currentSection = &Section{
				Heading:     heading,
				HeadingPath: strings.Join(headingStack, " > "),
				Level:       level,
				StartLine:   i + 1,
			}

			if level == 1 && doc.Title == "" {
				doc.Title = heading
				justSawH1 = true
			}
			continue
		}

		if justSawH1 && strings.TrimSpace(line) != "" {
			doc.Description = strings.TrimSpace(line)
			justSawH1 = false
		}

		if currentSection != nil {
			currentSection.Content += line + "\n"
		}

		if strings.Contains(strings.ToLower(line), "entry point") ||
			(currentSection != nil && strings.Contains(strings.ToLower(currentSection.Heading), "entry")) {
			for _, match := range inlineCodeRe.FindAllStringSubmatch(line, -1) {
				if isFilePath(match[1]) {
					doc.EntryPoints = append(doc.EntryPoints, match[1])
				}
			}
		}

		for _, match := range inlineCodeRe.FindAllStringSubmatch(line, -1) {
			code := match[1]
			if isFilePath(code) {
				doc.MentionedFiles = append(doc.MentionedFiles, code)
			} else if isSymbol(code) {
				doc.MentionedSymbols = append(doc.MentionedSymbols, code)
			}
		}
	}

	if currentSection != nil {
		currentSection.EndLine = len(lines)
		doc.Sections = append(doc.Sections, *currentSection)
	}

	return doc, nil
}

// Enrich attaches this doc's content to the RepoMap node it describes: the
// module node matching doc.Module, falling back to the snapshot root. It
// sets the node's summary (if empty) and its navigation attrs, and reports
// whether a target node was found.
func (d *AgentsDoc) Enrich(snap *repomap.Snapshot) bool {
	target := d.findTargetNode(snap)
	if target == nil {
		return false
	}

	if target.SummaryBody == "" {
		target.SummaryBody = d.Description
	}
	if target.SummaryTitle == "" {
		target.SummaryTitle = d.Title
	}
	if target.Attrs == nil {
		target.Attrs = make(map[string]any)
	}
	target.Attrs["navigation_doc_path"] = d.Path
	if len(d.EntryPoints) > 0 {
		target.Attrs["entry_points"] = d.EntryPoints
		target.IsEntrypoint = true
	}
	if len(d.MentionedSymbols) > 0 {
		target.Attrs["mentioned_symbols"] = d.MentionedSymbols
	}
	if len(d.MentionedFiles) > 0 {
		target.Attrs["mentioned_files"] = d.MentionedFiles
	}
	var headings []string
	for _, s := range d.Sections {
		headings = append(headings, s.HeadingPath)
	}
	if len(headings) > 0 {
		target.Attrs["navigation_sections"] = headings
	}
	return true
}

func (d *AgentsDoc) findTargetNode(snap *repomap.Snapshot) *repomap.Node {
	if d.Module != "" {
		for _, n := range snap.Nodes {
			if n.Kind == repomap.KindModule && (n.Name == d.Module || n.Path == d.Module) {
				return n
			}
		}
	}
	return snap.GetNode(snap.RootNodeID)
}

func isFilePath(s string) bool {
	return strings.Contains(s, "/") ||
		strings.HasSuffix(s, ".py") ||
		strings.HasSuffix(s, ".js") ||
		strings.HasSuffix(s, ".ts") ||
		strings.HasSuffix(s, ".go") ||
		strings.HasSuffix(s, ".tsx") ||
		strings.HasSuffix(s, ".jsx")
}

func isSymbol(s string) bool {
	if strings.Contains(s, "/") {
		return false
	}

	pascalCase := regexp.MustCompile(`^[A-Z][a-zA-Z0-9]+$`)
	if pascalCase.MatchString(s) {
		return true
	}

	snakeCase := regexp.MustCompile(`^[a-z_][a-z0-9_]+$`)
	return snakeCase.MatchString(s)
}
