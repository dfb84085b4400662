package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// Registry 机构注册中心接口
type Registry interface {
	// Get 获取指定代码的机构
	Get(code string) (*Organization, error)

	// List 按代码排序列出全部机构
	List() []*Organization

	// Codes 按代码排序列出机构代码
	Codes() []string

	// Default 默认机构
	Default() (*Organization, error)

	// DefaultCode 默认机构代码
	DefaultCode() string

	// Reload 以新的机构表整体替换，校验失败时保持原状
	Reload(orgs []Organization) error
}

// registry Registry 的实现
type registry struct {
	mu          sync.RWMutex
	orgs        map[string]*Organization
	defaultCode string
}

// New 创建注册中心，校验每个机构并确保数据目录存在
func New(orgs []Organization, defaultCode string) (Registry, error) {
	r := &registry{defaultCode: normalizeCode(defaultCode)}
	if err := r.Reload(orgs); err != nil {
		return nil, err
	}
	return r, nil
}

// Get 获取指定代码的机构
func (r *registry) Get(code string) (*Organization, error) {
	code = normalizeCode(code)

	r.mu.RLock()
	defer r.mu.RUnlock()

	org, exists := r.orgs[code]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrOrganizationNotFound, code)
	}
	return org, nil
}

// List 按代码排序列出全部机构
func (r *registry) List() []*Organization {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Organization, 0, len(r.orgs))
	for _, org := range r.orgs {
		result = append(result, org)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

// Codes 按代码排序列出机构代码
func (r *registry) Codes() []string {
	orgs := r.List()
	codes := make([]string, 0, len(orgs))
	for _, org := range orgs {
		codes = append(codes, org.Code)
	}
	return codes
}

// Default 默认机构
func (r *registry) Default() (*Organization, error) {
	return r.Get(r.DefaultCode())
}

// DefaultCode 默认机构代码
func (r *registry) DefaultCode() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultCode
}

// Reload 以新的机构表整体替换，校验失败时保持原状
func (r *registry) Reload(orgs []Organization) error {
	next := make(map[string]*Organization, len(orgs))
	for i := range orgs {
		org := orgs[i]
		org.Code = normalizeCode(org.Code)
		if err := org.Validate(); err != nil {
			return err
		}
		if _, dup := next[org.Code]; dup {
			return fmt.Errorf("%w: duplicate code %s", ErrInvalidOrganization, org.Code)
		}
		if err := os.MkdirAll(org.DataDir, 0755); err != nil {
			return fmt.Errorf("%w: data_dir for %s: %v", ErrInvalidOrganization, org.Code, err)
		}
		next[org.Code] = &org
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.orgs = next
	if _, ok := next[r.defaultCode]; !ok {
		klog.Warningf("default organization %q is not registered", r.defaultCode)
	}
	klog.V(6).Infof("organization registry loaded: %d organizations", len(next))
	return nil
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
