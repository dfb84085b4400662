package registry

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var codePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Organization 机构（大学）配置
type Organization struct {
	Code           string            `yaml:"code" json:"code"`
	DisplayName    string            `yaml:"display_name" json:"displayName"`
	DataDir        string            `yaml:"data_dir" json:"-"`
	Generators     map[string]string `yaml:"generators" json:"-"`
	DefaultLogoURL string            `yaml:"default_logo_url" json:"defaultLogoUrl"`
	Defaults       map[string]string `yaml:"defaults" json:"defaults,omitempty"`
	Disabled       bool              `yaml:"disabled" json:"-"`
}

// Generator 返回类别对应的生成脚本路径
func (o *Organization) Generator(category string) (string, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	script, ok := o.Generators[category]
	if !ok || script == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrGeneratorNotFound, o.Code, category)
	}
	return script, nil
}

// Default 读取默认值
func (o *Organization) Default(key, fallback string) string {
	if v, ok := o.Defaults[key]; ok {
		return v
	}
	return fallback
}

// Validate 校验机构配置
func (o *Organization) Validate() error {
	if o.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidOrganization)
	}
	if !codePattern.MatchString(o.Code) {
		return fmt.Errorf("%w: invalid code %q", ErrInvalidOrganization, o.Code)
	}
	if o.DisplayName == "" {
		return fmt.Errorf("%w: display_name is required for %s", ErrInvalidOrganization, o.Code)
	}
	if o.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required for %s", ErrInvalidOrganization, o.Code)
	}
	if !o.Disabled && len(o.Generators) == 0 {
		return fmt.Errorf("%w: no generators configured for %s", ErrInvalidOrganization, o.Code)
	}
	return nil
}

// BuiltinOrganizations 内置机构；dataRoot 为格式根目录，scriptsDir 为生成脚本目录
func BuiltinOrganizations(dataRoot, scriptsDir string) []Organization {
	return []Organization{
		{
			Code:        "unac",
			DisplayName: "UNAC",
			DataDir:     filepath.Join(dataRoot, "unac"),
			Generators: map[string]string{
				"informe":  filepath.Join(scriptsDir, "unac", "generador_informe_tesis.py"),
				"maestria": filepath.Join(scriptsDir, "unac", "generador_maestria.py"),
				"proyecto": filepath.Join(scriptsDir, "unac", "generador_proyecto_tesis.py"),
			},
			DefaultLogoURL: "/static/assets/LogoUNAC.png",
			Defaults: map[string]string{
				"universidad": "UNIVERSIDAD NACIONAL DEL CALLAO",
				"lugar":       "CALLAO, PERÚ",
				"anio":        "2026",
			},
		},
		{
			Code:        "uni",
			DisplayName: "UNI",
			DataDir:     filepath.Join(dataRoot, "uni"),
			Generators: map[string]string{
				"informe":  filepath.Join(scriptsDir, "uni", "generador_informe_tesis.py"),
				"maestria": filepath.Join(scriptsDir, "uni", "generador_maestria.py"),
				"posgrado": filepath.Join(scriptsDir, "uni", "generador_maestria.py"),
				"proyecto": filepath.Join(scriptsDir, "uni", "generador_proyecto_tesis.py"),
			},
			DefaultLogoURL: "/static/assets/LogoGeneric.png",
		},
	}
}
