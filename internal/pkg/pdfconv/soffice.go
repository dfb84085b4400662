package pdfconv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// OfficeRunner 调用 LibreOffice 无界面模式转换
type OfficeRunner struct {
	Binary string
}

// NewOfficeRunner 创建 OfficeRunner，binary 为空时使用 soffice
func NewOfficeRunner(binary string) *OfficeRunner {
	if binary == "" {
		binary = "soffice"
	}
	return &OfficeRunner{Binary: binary}
}

// Run 在临时目录中转换，成功后移动到目标路径
func (r *OfficeRunner) Run(ctx context.Context, docxPath, pdfPath string) error {
	outDir, err := os.MkdirTemp("", "pdfconv-")
	if err != nil {
		return &ConversionError{Docx: docxPath, Err: err}
	}
	defer os.RemoveAll(outDir)

	profile := "-env:UserInstallation=file://" + filepath.ToSlash(filepath.Join(outDir, "profile"))
	cmd := exec.CommandContext(ctx, r.Binary, profile, "--headless", "--convert-to", "pdf", "--outdir", outDir, docxPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ConversionError{Docx: docxPath, Output: strings.TrimSpace(string(output)), Err: err}
	}

	stem := strings.TrimSuffix(filepath.Base(docxPath), filepath.Ext(docxPath))
	produced := filepath.Join(outDir, stem+".pdf")
	info, err := os.Stat(produced)
	if err != nil || info.Size() == 0 {
		return &ConversionError{
			Docx:   docxPath,
			Output: strings.TrimSpace(string(output)),
			Err:    errors.New("converter did not produce a PDF"),
		}
	}
	if err := moveFile(produced, pdfPath); err != nil {
		return &ConversionError{Docx: docxPath, Err: fmt.Errorf("failed to move pdf: %w", err)}
	}
	return nil
}

// moveFile 先尝试重命名，跨设备时复制
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
