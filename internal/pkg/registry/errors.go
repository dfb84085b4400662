package registry

import "errors"

// 预定义错误
var (
	// ErrOrganizationNotFound 机构未注册
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrInvalidOrganization 机构配置无效
	ErrInvalidOrganization = errors.New("invalid organization")

	// ErrGeneratorNotFound 类别没有对应的生成脚本
	ErrGeneratorNotFound = errors.New("generator not available for category")
)
