package validator

import (
	"net"
	"net/netip"
	"strings"
)

// IsValidIP 验证 IP 地址格式（支持 IPv4 和 IPv6）
func IsValidIP(ip string) bool {
	if ip == "" {
		return false
	}
	return net.ParseIP(NormalizeIP(ip)) != nil
}

// NormalizeIP 规范化 IP 地址
// 移除 IPv6 的 zone identifier (例如 fe80::1%eth0 -> fe80::1) 和方括号
func NormalizeIP(ip string) string {
	ip = strings.TrimSuffix(strings.TrimPrefix(ip, "["), "]")
	if idx := strings.IndexByte(ip, '%'); idx != -1 {
		return ip[:idx]
	}
	return ip
}

// IsPublicHost reports whether host may be fetched by the page scorer.
// Literal addresses must be globally routable; names are accepted except
// localhost and its subdomains. Names are not resolved.
func IsPublicHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return false
	}

	addr, err := netip.ParseAddr(NormalizeIP(host))
	if err != nil {
		return true
	}
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() && !addr.IsPrivate()
}
