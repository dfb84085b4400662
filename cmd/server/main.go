package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/gicatesis/backend/config"
	"github.com/gicatesis/backend/internal/eventbus"
	"github.com/gicatesis/backend/internal/handler"
	"github.com/gicatesis/backend/internal/pkg/cache"
	"github.com/gicatesis/backend/internal/pkg/database"
	"github.com/gicatesis/backend/internal/pkg/formatindex"
	"github.com/gicatesis/backend/internal/pkg/pdfconv"
	"github.com/gicatesis/backend/internal/pkg/registry"
	"github.com/gicatesis/backend/internal/pkg/renderer"
	"github.com/gicatesis/backend/internal/pkg/watcher"
	"github.com/gicatesis/backend/internal/repository"
	"github.com/gicatesis/backend/internal/router"
	"github.com/gicatesis/backend/internal/service"
	"github.com/gicatesis/backend/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	for _, dir := range []string{cfg.Data.Dir, cfg.Data.OutputDir, cfg.Data.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			klog.Fatalf("创建目录失败: dir=%s, error=%v", dir, err)
		}
	}

	// 机构注册表与格式索引
	reg, err := registry.New(cfg.OrganizationTable(), cfg.DefaultOrg)
	if err != nil {
		klog.Fatalf("机构注册表初始化失败: %v", err)
	}
	index := formatindex.New(reg)

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		klog.Fatalf("Failed to initialize database: %v", err)
	}
	runRepo := repository.NewGenerationRunRepository(db)

	store := newCacheStore(cfg)

	// 事件总线
	catalogBus := eventbus.NewCatalogEventBus()
	generationBus := eventbus.NewGenerationEventBus()

	docRenderer := renderer.New(cfg.Generation.PythonBin, cfg.Generation.RenderTimeout)
	var converter service.PDFConverter
	if cfg.PDF.Enabled {
		pdf, err := pdfconv.New(pdfconv.NewOfficeRunner(cfg.PDF.Binary), pdfconv.Options{
			Timeout:    cfg.PDF.Timeout,
			MaxRetries: cfg.PDF.MaxRetries,
			Backoff:    time.Second,
		})
		if err != nil {
			klog.Fatalf("PDF 转换器初始化失败: %v", err)
		}
		defer pdf.Stop()
		converter = pdf
	}

	// 初始化 Service
	catalogService := service.NewCatalogService(index, store, cfg.Data.StaticDir)
	previewService := service.NewPreviewService(index, docRenderer, converter, filepath.Join(cfg.Data.CacheDir, "previews"))
	renderService := service.NewRenderService(index, docRenderer, converter, previewService, "")
	generationService := service.NewGenerationService(index, docRenderer, converter, runRepo, generationBus, service.GenerationOptions{
		OutputDir: cfg.Data.OutputDir,
		TTL:       cfg.Generation.ArtifactTTL,
	})

	subscriber.NewCatalogEventSubscriber(catalogService).Register(catalogBus)
	subscriber.NewGenerationEventSubscriber().Register(generationBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Watcher.Enabled {
		w := watcher.NewFileWatcher(cfg.Data.FormatsDir, cfg.Watcher.Interval, []string{".json"}, func(event watcher.FileEvent) {
			if err := catalogBus.Publish(ctx, eventbus.CatalogEventFormatChanged, eventbus.CatalogEvent{
				Type:   eventbus.CatalogEventFormatChanged,
				Change: event.Type,
				Path:   event.Path,
			}); err != nil {
				klog.Warningf("格式变更事件处理失败: path=%s, error=%v", event.Path, err)
			}
		})
		if err := w.Start(); err != nil {
			klog.Warningf("格式目录监听启动失败: %v", err)
		} else {
			defer w.Stop()
		}
	}

	go sweepLoop(ctx, generationService, cfg.Generation.ArtifactTTL)

	// 初始化 Handler
	formatHandler := handler.NewFormatHandler(catalogService, previewService)
	generationHandler := handler.NewGenerationHandler(generationService)
	renderHandler := handler.NewRenderHandler(renderService)

	// 设置路由
	r := router.Setup(cfg, formatHandler, generationHandler, renderHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}
	go func() {
		klog.Infof("Server starting on port %s...", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Fatalf("Failed to start server: %v", err)
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig == syscall.SIGHUP {
			reloadOrganizations(ctx, reg, catalogBus)
			continue
		}
		break
	}

	klog.Info("shutting down server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		klog.Errorf("forced shutdown: %v", err)
	}
	klog.Info("server exited")
}

// newCacheStore 配置了 Redis 时使用 Redis，连接失败回退到内存缓存
func newCacheStore(cfg *config.Config) cache.Store {
	if cfg.Cache.RedisURL != "" {
		store, err := cache.ConnectRedis(cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err == nil {
			return store
		}
		klog.Warningf("Redis 不可用，使用内存缓存: %v", err)
	}
	return cache.NewMemoryStore(cfg.Cache.TTL)
}

// reloadOrganizations 重新读取配置文件中的机构表并通知目录刷新
func reloadOrganizations(ctx context.Context, reg registry.Registry, bus *eventbus.CatalogEventBus) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	fresh := config.Load(configPath)
	if err := reg.Reload(fresh.OrganizationTable()); err != nil {
		klog.Errorf("机构注册表重载失败: %v", err)
		return
	}
	if err := bus.Publish(ctx, eventbus.CatalogEventReloaded, eventbus.CatalogEvent{Type: eventbus.CatalogEventReloaded}); err != nil {
		klog.Warningf("目录刷新失败: %v", err)
	}
	klog.Infof("机构注册表已重载: %v", reg.Codes())
}

// sweepLoop 定期清理过期产物，Generate 之间长时间空闲时也能回收磁盘
func sweepLoop(ctx context.Context, svc service.GenerationService, ttl time.Duration) {
	if ttl <= 0 {
		ttl = service.DefaultArtifactTTL
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := svc.SweepExpired(ctx); err != nil {
				klog.Warningf("清理过期产物失败: %v", err)
			} else if n > 0 {
				klog.V(6).Infof("定期清理过期产物: count=%d", n)
			}
		}
	}
}
