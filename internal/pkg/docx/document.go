package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	wordNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	documentPart = "word/document.xml"
	stylesPart   = "word/styles.xml"

	defaultStyle = "Normal"
)

var ErrMissingDocumentPart = errors.New("docx: word/document.xml not found")

// Run 段落中的文本片段
type Run struct {
	Text string
	Bold bool
}

// Paragraph 正文或表格单元格中的段落
type Paragraph struct {
	Text    string
	Style   string
	Runs    []Run
	InTable bool

	start, end       int64
	pPrStart, pPrEnd int64
	hasSectPr        bool
}

type edit struct {
	start, end int64
	content    []byte
}

// Document 可编辑的 DOCX 文档，只修改 word/document.xml，其余部件原样复制
type Document struct {
	reader     *zip.ReadCloser
	body       []byte
	paragraphs []*Paragraph
	edits      []edit
	removed    map[*Paragraph]bool
}

// Open 打开 DOCX 并解析正文段落
func Open(path string) (*Document, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	doc := &Document{reader: reader, removed: make(map[*Paragraph]bool)}
	if err := doc.load(); err != nil {
		reader.Close()
		return nil, err
	}
	return doc, nil
}

func (d *Document) load() error {
	var styles map[string]string
	for _, f := range d.reader.File {
		switch f.Name {
		case documentPart:
			body, err := readZipFile(f)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", documentPart, err)
			}
			d.body = body
		case stylesPart:
			raw, err := readZipFile(f)
			if err == nil {
				styles = parseStyles(raw)
			}
		}
	}
	if d.body == nil {
		return ErrMissingDocumentPart
	}

	paragraphs, err := parseParagraphs(d.body, styles)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", documentPart, err)
	}
	d.paragraphs = paragraphs
	return nil
}

// Close 释放底层 zip 文件
func (d *Document) Close() error {
	return d.reader.Close()
}

// Paragraphs 正文直属段落（不含表格）
func (d *Document) Paragraphs() []*Paragraph {
	out := make([]*Paragraph, 0, len(d.paragraphs))
	for _, p := range d.paragraphs {
		if !p.InTable {
			out = append(out, p)
		}
	}
	return out
}

// AllParagraphs 正文与表格单元格中的全部段落，按文档顺序
func (d *Document) AllParagraphs() []*Paragraph {
	return append([]*Paragraph(nil), d.paragraphs...)
}

// InsertAfter 在段落后插入 Normal 样式的新段落，每行一个
func (d *Document) InsertAfter(p *Paragraph, lines ...string) {
	if len(lines) == 0 {
		return
	}
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(`<w:p><w:pPr><w:pStyle w:val="` + defaultStyle + `"/></w:pPr>`)
		if line != "" {
			buf.WriteString(`<w:r><w:t xml:space="preserve">`)
			xml.EscapeText(&buf, []byte(line))
			buf.WriteString(`</w:t></w:r>`)
		}
		buf.WriteString(`</w:p>`)
	}
	d.edits = append(d.edits, edit{start: p.end, end: p.end, content: buf.Bytes()})
}

// Remove 删除段落；表格单元格内或携带分节属性的段落仅清空文本
func (d *Document) Remove(p *Paragraph) {
	if d.removed[p] {
		return
	}
	d.removed[p] = true

	if !p.InTable && !p.hasSectPr {
		d.edits = append(d.edits, edit{start: p.start, end: p.end})
		return
	}

	var buf bytes.Buffer
	buf.WriteString("<w:p>")
	if p.pPrStart >= 0 && p.pPrEnd > p.pPrStart {
		buf.Write(d.body[p.pPrStart:p.pPrEnd])
	}
	buf.WriteString("</w:p>")
	d.edits = append(d.edits, edit{start: p.start, end: p.end, content: buf.Bytes()})
}

// Bytes 返回应用全部修改后的 document.xml
func (d *Document) Bytes() []byte {
	if len(d.edits) == 0 {
		return d.body
	}

	edits := append([]edit(nil), d.edits...)
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start < edits[j].start
		}
		return edits[i].end < edits[j].end
	})

	var out bytes.Buffer
	var pos int64
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		out.Write(d.body[pos:e.start])
		out.Write(e.content)
		pos = e.end
	}
	out.Write(d.body[pos:])
	return out.Bytes()
}

// Save 写出新的 DOCX；目标可与源文件相同
func (d *Document) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".docx-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := zip.NewWriter(tmp)
	for _, f := range d.reader.File {
		if f.Name != documentPart {
			if err := w.Copy(f); err != nil {
				tmp.Close()
				return fmt.Errorf("failed to copy %s: %w", f.Name, err)
			}
			continue
		}
		part, err := w.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			tmp.Close()
			return err
		}
		if _, err := part.Write(d.Bytes()); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// parseStyles 读取 styleId 到样式名称的映射
func parseStyles(raw []byte) map[string]string {
	var doc struct {
		Styles []struct {
			ID   string `xml:"styleId,attr"`
			Name struct {
				Val string `xml:"val,attr"`
			} `xml:"name"`
		} `xml:"style"`
	}
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	styles := make(map[string]string, len(doc.Styles))
	for _, s := range doc.Styles {
		if s.ID != "" && s.Name.Val != "" {
			styles[s.ID] = s.Name.Val
		}
	}
	return styles
}

// parseParagraphs 扫描 document.xml，记录 body 与表格单元格直属段落的字节区间
func parseParagraphs(body []byte, styles map[string]string) ([]*Paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		stack      []string
		paragraphs []*Paragraph
		current    *Paragraph
		text       strings.Builder
		run        *Run
		pDepth     int
		nested     int
		inText     bool
		styleID    string
	)

	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			local := ""
			if t.Name.Space == wordNS {
				local = t.Name.Local
			}
			stack = append(stack, local)

			switch local {
			case "p":
				if current != nil {
					nested++
				} else if parent == "body" || parent == "tc" {
					current = &Paragraph{start: offset, InTable: parent == "tc", pPrStart: -1, pPrEnd: -1}
					pDepth = len(stack)
					text.Reset()
					styleID = ""
				}
			case "pPr":
				if current != nil && nested == 0 && len(stack) == pDepth+1 {
					current.pPrStart = offset
				}
			case "pStyle":
				if current != nil && nested == 0 && parent == "pPr" && len(stack) == pDepth+2 {
					styleID = attrValue(t, "val")
				}
			case "sectPr":
				if current != nil {
					current.hasSectPr = true
				}
			case "r":
				if current != nil && nested == 0 {
					run = &Run{}
				}
			case "b":
				if run != nil && parent == "rPr" {
					run.Bold = isOn(attrValue(t, "val"))
				}
			case "t":
				if current != nil && nested == 0 {
					inText = true
				}
			case "tab":
				if current != nil && nested == 0 && parent == "r" {
					appendText(&text, run, "\t")
				}
			case "br", "cr":
				if current != nil && nested == 0 && parent == "r" {
					appendText(&text, run, "\n")
				}
			}

		case xml.CharData:
			if inText {
				appendText(&text, run, string(t))
			}

		case xml.EndElement:
			depth := len(stack)
			local := ""
			if depth > 0 {
				local = stack[depth-1]
				stack = stack[:depth-1]
			}

			switch local {
			case "t":
				inText = false
			case "r":
				if run != nil && current != nil && nested == 0 {
					current.Runs = append(current.Runs, *run)
					run = nil
				}
			case "pPr":
				if current != nil && nested == 0 && depth == pDepth+1 {
					current.pPrEnd = dec.InputOffset()
				}
			case "p":
				if nested > 0 {
					nested--
					continue
				}
				if current != nil && depth == pDepth {
					current.end = dec.InputOffset()
					current.Text = text.String()
					current.Style = styleName(styleID, styles)
					paragraphs = append(paragraphs, current)
					current = nil
				}
			}
		}
	}
	return paragraphs, nil
}

func appendText(text *strings.Builder, run *Run, s string) {
	text.WriteString(s)
	if run != nil {
		run.Text += s
	}
}

func styleName(id string, styles map[string]string) string {
	if id == "" {
		return defaultStyle
	}
	if name, ok := styles[id]; ok {
		return name
	}
	return id
}

func attrValue(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// isOn w:b 无 val 或 val 为真值时视为加粗
func isOn(val string) bool {
	switch strings.ToLower(val) {
	case "0", "false", "off":
		return false
	}
	return true
}
