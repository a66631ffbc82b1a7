// 包 version：构建信息，由 -ldflags "-X restroom-api/internal/version.Commit=<sha>" 注入
package version

// Commit：构建时的提交哈希，未注入时为 dev
var Commit = "dev"
