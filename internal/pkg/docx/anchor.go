package docx

import (
	"strings"

	"github.com/gicatesis/backend/internal/pkg/resolver"
	"github.com/gicatesis/backend/internal/pkg/sectionindex"
	"k8s.io/klog/v2"
)

// guideTokens 模板中残留的指引段落标记，仅在模拟输出中清除
var guideTokens = []string{
	"NOTA:",
	"GUIA:",
	"EJEMPLO:",
	"INSTRUCCION:",
	"[ESCRIBA",
	"[COLOQUE",
}

// Result 后处理统计
type Result struct {
	Inserted      int `json:"inserted"`
	RemovedGuides int `json:"removed_guides"`
}

// Match 章节与其在文档中对应的标题段落
type Match struct {
	Entry     sectionindex.Entry
	Paragraph *Paragraph
}

// LooksLikeHeading 标题样式，或所有非空片段均为加粗
func LooksLikeHeading(p *Paragraph) bool {
	if resolver.NormalizeText(p.Text) == "" {
		return false
	}

	style := resolver.NormalizeForMatch(p.Style)
	if strings.Contains(style, "heading") || strings.Contains(style, "titulo") {
		return true
	}

	hasRuns := false
	for _, run := range p.Runs {
		if resolver.NormalizeText(run.Text) == "" {
			continue
		}
		hasRuns = true
		if !run.Bold {
			return false
		}
	}
	return hasRuns
}

// IsGuideParagraph 判断段落是否为模板指引文本
func IsGuideParagraph(text string) bool {
	normalized := resolver.NormalizeForMatch(text)
	if normalized == "" {
		return false
	}
	for _, token := range guideTokens {
		if strings.Contains(normalized, resolver.NormalizeForMatch(token)) {
			return true
		}
	}
	return false
}

// FindSectionParagraphs 以游标顺序为每个章节寻找标题段落
// 先按标题子串/超串匹配，找不到时取游标后第一个形似标题的段落；都找不到则跳过该章节
func FindSectionParagraphs(paragraphs []*Paragraph, entries []sectionindex.Entry) []Match {
	candidates := make([]*Paragraph, 0, len(paragraphs))
	for _, p := range paragraphs {
		if resolver.NormalizeText(p.Text) != "" {
			candidates = append(candidates, p)
		}
	}

	matches := make([]Match, 0, len(entries))
	cursor := 0
	for _, entry := range entries {
		expected := resolver.NormalizeForMatch(entry.Title)
		found := -1

		if expected != "" {
			for idx := cursor; idx < len(candidates); idx++ {
				actual := resolver.NormalizeForMatch(candidates[idx].Text)
				if actual == "" {
					continue
				}
				if strings.Contains(actual, expected) || strings.Contains(expected, actual) {
					found = idx
					break
				}
			}
		}

		if found < 0 {
			for idx := cursor; idx < len(candidates); idx++ {
				if LooksLikeHeading(candidates[idx]) {
					found = idx
					break
				}
			}
		}

		if found < 0 {
			klog.V(6).Infof("section heading not found in document: %s (%s)", entry.SectionID, entry.Path)
			continue
		}

		matches = append(matches, Match{Entry: entry, Paragraph: candidates[found]})
		cursor = found + 1
	}
	return matches
}

// Anchor 在匹配到的标题后插入解析出的内容，并清除指引段落
func Anchor(doc *Document, entries []sectionindex.Entry, lookup resolver.Lookup) Result {
	var result Result

	for _, match := range FindSectionParagraphs(doc.Paragraphs(), entries) {
		content := resolver.Resolve(match.Entry, lookup)
		lines := contentLines(content)

		kept := make([]string, 0, len(lines))
		for _, line := range lines {
			result.Inserted++
			if IsGuideParagraph(line) {
				result.RemovedGuides++
				continue
			}
			kept = append(kept, line)
		}
		doc.InsertAfter(match.Paragraph, kept...)
	}

	for _, p := range doc.AllParagraphs() {
		if IsGuideParagraph(p.Text) {
			doc.Remove(p)
			result.RemovedGuides++
		}
	}
	return result
}

// PostProcessFile 打开、处理并原地保存 DOCX
func PostProcessFile(path string, entries []sectionindex.Entry, lookup resolver.Lookup) (Result, error) {
	doc, err := Open(path)
	if err != nil {
		return Result{}, err
	}
	defer doc.Close()

	result := Anchor(doc, entries, lookup)
	if err := doc.Save(path); err != nil {
		return Result{}, err
	}
	klog.V(6).Infof("docx post-processed: path=%s, inserted=%d, removed_guides=%d", path, result.Inserted, result.RemovedGuides)
	return result, nil
}

func contentLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if normalized := resolver.NormalizeText(line); normalized != "" {
			lines = append(lines, normalized)
		}
	}
	if len(lines) == 0 {
		lines = []string{resolver.Placeholder}
	}
	return lines
}
