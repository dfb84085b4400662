package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

var ErrScriptNotFound = errors.New("generator script not found")

const maxStderrLen = 4096

// RenderError 生成脚本执行失败
type RenderError struct {
	Script   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("render %s failed", filepath.Base(e.Script))
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Renderer 调用外部生成脚本：<python> <script> <json> <docx>
type Renderer struct {
	Python  string
	Timeout time.Duration
}

// New 创建 Renderer，python 为空时使用 python3
func New(python string, timeout time.Duration) *Renderer {
	if python == "" {
		python = "python3"
	}
	return &Renderer{Python: python, Timeout: timeout}
}

// Render 以脚本所在目录为工作目录执行生成脚本，并确认输出文件存在且非空
func (r *Renderer) Render(ctx context.Context, script, inputJSON, outputDocx string) error {
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("%w: %s", ErrScriptNotFound, script)
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.Python, script, inputJSON, outputDocx)
	cmd.Dir = filepath.Dir(script)
	cmd.Env = append(os.Environ(), "PYTHONIOENCODING=utf-8")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		renderErr := &RenderError{Script: script, Stderr: trimStderr(stderr.String()), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			renderErr.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			renderErr.Err = ctx.Err()
		}
		klog.Errorf("generator failed: script=%s, err=%v", script, renderErr)
		return renderErr
	}

	info, err := os.Stat(outputDocx)
	if err != nil || info.Size() == 0 {
		return &RenderError{
			Script: script,
			Stderr: trimStderr(stderr.String()),
			Err:    errors.New("generator executed but did not create the DOCX file"),
		}
	}
	klog.V(6).Infof("generator finished: script=%s, output=%s, elapsed=%v", script, outputDocx, time.Since(start))
	return nil
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrLen {
		return s[len(s)-maxStderrLen:]
	}
	return s
}
