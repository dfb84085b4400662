package service

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gicatesis/backend/internal/pkg/formatindex"
	"github.com/gicatesis/backend/internal/utils"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"
)

const (
	ContentTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypePDF  = "application/pdf"
)

// PreviewFile 可直接下发的预览文件
type PreviewFile struct {
	Path        string
	Filename    string
	ContentType string
	ETag        string
	ModTime     time.Time
}

// PreviewManifest 预览缓存清单
type PreviewManifest struct {
	FormatID            string `json:"format_id"`
	JSONPath            string `json:"json_path"`
	JSONMTime           int64  `json:"json_mtime"`
	GeneratorScriptPath string `json:"generator_script_path"`
	GeneratorMTime      int64  `json:"generator_mtime"`
	CreatedAt           string `json:"created_at"`
	DocxPath            string `json:"docx_path"`
	PdfPath             string `json:"pdf_path,omitempty"`
	SHA256PDF           string `json:"sha256_pdf,omitempty"`
}

// PreviewService 按格式缓存的 DOCX/PDF 预览
type PreviewService interface {
	Docx(ctx context.Context, formatID string) (*PreviewFile, error)
	PDF(ctx context.Context, formatID string) (*PreviewFile, error)
}

type previewService struct {
	index     *formatindex.Index
	renderer  DocumentRenderer
	converter PDFConverter
	cacheDir  string
	group     singleflight.Group
}

func NewPreviewService(index *formatindex.Index, renderer DocumentRenderer, converter PDFConverter, cacheDir string) PreviewService {
	return &previewService{index: index, renderer: renderer, converter: converter, cacheDir: cacheDir}
}

// previewSource 预览的源文件信息
type previewSource struct {
	format     *resolvedFormat
	jsonMTime  time.Time
	scriptTime time.Time
}

// mtime 定义文件与生成脚本中较新的修改时间
func (p previewSource) mtime() time.Time {
	if p.scriptTime.After(p.jsonMTime) {
		return p.scriptTime
	}
	return p.jsonMTime
}

func (s *previewService) source(ctx context.Context, formatID string) (*previewSource, error) {
	format, err := resolveFormat(ctx, s.index, formatID)
	if err != nil {
		return nil, err
	}
	src := &previewSource{format: format}
	if info, err := os.Stat(format.entry.Path); err == nil {
		src.jsonMTime = info.ModTime()
	}
	if info, err := os.Stat(format.script); err == nil {
		src.scriptTime = info.ModTime()
	}
	return src, nil
}

func (s *previewService) cachePath(formatID, ext string) string {
	return filepath.Join(s.cacheDir, safeName(formatID)+ext)
}

// isFresh 缓存文件非空且不早于源文件
func isFresh(path string, sourceMTime time.Time) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}
	return !info.ModTime().Before(sourceMTime)
}

// PreviewETag "md5(<id>:<unix mtime>)"
func PreviewETag(formatID string, sourceMTime time.Time) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d", formatID, sourceMTime.Unix())))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (s *previewService) Docx(ctx context.Context, formatID string) (*PreviewFile, error) {
	src, err := s.source(ctx, formatID)
	if err != nil {
		return nil, err
	}
	path, err := s.ensureDocx(ctx, src)
	if err != nil {
		return nil, err
	}
	return &PreviewFile{
		Path:        path,
		Filename:    documentFilename(src.format.entry),
		ContentType: ContentTypeDocx,
		ETag:        PreviewETag(src.format.entry.ID, src.mtime()),
		ModTime:     src.mtime(),
	}, nil
}

func (s *previewService) PDF(ctx context.Context, formatID string) (*PreviewFile, error) {
	src, err := s.source(ctx, formatID)
	if err != nil {
		return nil, err
	}
	path, err := s.ensurePDF(ctx, src)
	if err != nil {
		return nil, err
	}
	return &PreviewFile{
		Path:        path,
		Filename:    pdfFilename(src.format.entry),
		ContentType: ContentTypePDF,
		ETag:        PreviewETag(src.format.entry.ID, src.mtime()),
		ModTime:     src.mtime(),
	}, nil
}

// ensureDocx 缓存过期时重新调用生成脚本，同一格式的并发请求只生成一次
func (s *previewService) ensureDocx(ctx context.Context, src *previewSource) (string, error) {
	id := src.format.entry.ID
	target := s.cachePath(id, ".docx")
	if isFresh(target, src.mtime()) {
		return target, nil
	}

	_, err, _ := s.group.Do("docx:"+id, func() (any, error) {
		if isFresh(target, src.mtime()) {
			return nil, nil
		}
		if err := os.MkdirAll(s.cacheDir, 0755); err != nil {
			return nil, err
		}
		input, err := writeInputJSON(s.cacheDir, "preview-*.json", prepareFinal(src.format.raw, nil))
		if err != nil {
			return nil, err
		}
		defer removeQuietly(input)

		tmp := target + ".tmp.docx"
		if err := s.renderer.Render(ctx, src.format.script, input, tmp); err != nil {
			removeQuietly(tmp)
			return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
		}
		if err := os.Rename(tmp, target); err != nil {
			return nil, err
		}
		klog.V(6).Infof("预览 DOCX 已生成: id=%s, path=%s", id, target)
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

func (s *previewService) ensurePDF(ctx context.Context, src *previewSource) (string, error) {
	id := src.format.entry.ID
	target := s.cachePath(id, ".pdf")
	docxPath, err := s.ensureDocx(ctx, src)
	if err != nil {
		return "", err
	}
	if isFresh(target, src.mtime()) {
		return target, nil
	}
	if s.converter == nil {
		return "", ErrPDFUnavailable
	}

	_, err, _ = s.group.Do("pdf:"+id, func() (any, error) {
		if isFresh(target, src.mtime()) {
			return nil, nil
		}
		if err := s.converter.Convert(ctx, docxPath, target); err != nil {
			return nil, err
		}
		digest, err := fileSHA256(target)
		if err != nil {
			return nil, err
		}
		s.writeManifest(src, docxPath, target, digest)
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// writeManifest 写入缓存清单，失败只记录日志
func (s *previewService) writeManifest(src *previewSource, docxPath, pdfPath, digest string) {
	manifest := PreviewManifest{
		FormatID:            src.format.entry.ID,
		JSONPath:            src.format.entry.Path,
		JSONMTime:           src.jsonMTime.Unix(),
		GeneratorScriptPath: src.format.script,
		GeneratorMTime:      src.scriptTime.Unix(),
		CreatedAt:           time.Now().UTC().Format(time.RFC3339),
		DocxPath:            docxPath,
		PdfPath:             pdfPath,
		SHA256PDF:           digest,
	}
	path := s.cachePath(src.format.entry.ID, ".manifest.json")
	if err := utils.WriteJSONFile(path, manifest); err != nil {
		klog.Warningf("写入预览清单失败: path=%s, error=%v", path, err)
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
