package pdfconv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"
)

// -----------------------------
// 错误定义
// -----------------------------
var (
	ErrConversionTimeout = errors.New("pdf conversion timed out")
	ErrConverterStopped  = errors.New("pdf converter is stopped")
)

// ConversionError 转换失败（非超时）
type ConversionError struct {
	Docx   string
	Output string
	Err    error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("pdf conversion failed for %s: %v", e.Docx, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Runner 执行一次 DOCX 到 PDF 的转换
type Runner interface {
	Run(ctx context.Context, docxPath, pdfPath string) error
}

// RunnerFunc 函数适配 Runner
type RunnerFunc func(ctx context.Context, docxPath, pdfPath string) error

func (f RunnerFunc) Run(ctx context.Context, docxPath, pdfPath string) error {
	return f(ctx, docxPath, pdfPath)
}

// Options 转换器参数
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// -----------------------------
// Converter
// -----------------------------
// Converter 使用单 worker 协程池串行执行转换；办公软件实例不支持并发
type Converter struct {
	pool   *ants.Pool
	runner Runner
	opts   Options

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New 创建转换器
func New(runner Runner, opts Options) (*Converter, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	pool, err := ants.NewPool(1,
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(100),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		klog.Errorf("ants pool initialization failed: %v", err)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Converter{
		pool:   pool,
		runner: runner,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Convert 将 DOCX 转换为 PDF，阻塞直到完成、超时或 ctx 取消
// 超时返回 ErrConversionTimeout；其余失败重试 MaxRetries 次后返回 *ConversionError
func (c *Converter) Convert(ctx context.Context, docxPath, pdfPath string) error {
	var lastErr error
	for i := 0; i <= c.opts.MaxRetries; i++ {
		if i > 0 {
			backoff := c.opts.Backoff << (i - 1)
			klog.Warningf("pdf conversion retry: docx=%s, attempt=%d/%d, err=%v, backoff=%v",
				docxPath, i+1, c.opts.MaxRetries+1, lastErr, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := c.submit(ctx, docxPath, pdfPath)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConversionTimeout) || errors.Is(err, ErrConverterStopped) || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}

	var convErr *ConversionError
	if errors.As(lastErr, &convErr) {
		return convErr
	}
	return &ConversionError{Docx: docxPath, Err: lastErr}
}

// submit 提交单次转换到协程池并等待
func (c *Converter) submit(ctx context.Context, docxPath, pdfPath string) error {
	select {
	case <-c.ctx.Done():
		return ErrConverterStopped
	default:
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(c.ctx, c.opts.Timeout)
	defer cancel()

	done := make(chan error, 1)
	err := c.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				klog.Errorf("pdf conversion panic recovered: docx=%s, err=%v", docxPath, r)
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		if runCtx.Err() != nil {
			done <- runCtx.Err()
			return
		}
		done <- c.runner.Run(runCtx, docxPath, pdfPath)
	})
	if err != nil {
		return fmt.Errorf("failed to submit pdf conversion: %w", err)
	}

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				klog.Errorf("pdf conversion timeout: %s -> %s", docxPath, pdfPath)
				return ErrConversionTimeout
			}
			return err
		}
		klog.V(6).Infof("pdf generated: %s (%.2fs)", pdfPath, time.Since(start).Seconds())
		return nil
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			klog.Errorf("pdf conversion timeout: %s -> %s", docxPath, pdfPath)
			return ErrConversionTimeout
		}
		return ErrConverterStopped
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Running 正在执行的转换数
func (c *Converter) Running() int {
	return c.pool.Running()
}

// Stop 停止接收新的转换并等待当前转换结束
func (c *Converter) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		if err := c.pool.ReleaseTimeout(c.opts.Timeout); err != nil {
			klog.Warningf("pdf converter stop timeout: %v", err)
		}
		klog.V(6).Infof("pdf converter stopped")
	})
}
