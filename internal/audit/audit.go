// Package audit извлекает метаданные устройства/сети из HTTP запроса
// для записи в историю версий. Метаданные носят справочный характер
// и никогда не участвуют в логике конфликтов.
package audit

import (
	"net"
	"net/http"
	"strings"

	"github.com/iudanet/tabkeeper/pkg/api"
)

// Классы устройств, выводимые из User-Agent
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// FromRequest собирает AuditInfo из запроса: класс устройства из
// User-Agent, замаскированный IP и код страны из заголовка прокси.
func FromRequest(r *http.Request) api.AuditInfo {
	return api.AuditInfo{
		Device:  DeviceClass(r.UserAgent()),
		IP:      MaskIP(clientIP(r)),
		Country: country(r),
	}
}

// DeviceClass классифицирует User-Agent по грубым признакам.
// Порядок проверок важен: многие мобильные UA содержат и "mobile",
// и десктопные токены, а планшеты содержат "mobile" не всегда.
func DeviceClass(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case ua == "":
		return DeviceUnknown
	case strings.Contains(ua, "bot"),
		strings.Contains(ua, "crawler"),
		strings.Contains(ua, "spider"),
		strings.Contains(ua, "curl"),
		strings.Contains(ua, "wget"):
		return DeviceBot
	case strings.Contains(ua, "ipad"),
		strings.Contains(ua, "tablet"):
		return DeviceTablet
	case strings.Contains(ua, "mobile"),
		strings.Contains(ua, "android"),
		strings.Contains(ua, "iphone"):
		return DeviceMobile
	case strings.Contains(ua, "windows"),
		strings.Contains(ua, "macintosh"),
		strings.Contains(ua, "x11"),
		strings.Contains(ua, "linux"):
		return DeviceDesktop
	default:
		return DeviceUnknown
	}
}

// MaskIP частично скрывает адрес перед сохранением:
// у IPv4 маскируется последний октет, у IPv6 - хвост после /32.
// Немаскированный адрес никогда не покидает границу запроса.
func MaskIP(addr string) string {
	if addr == "" {
		return ""
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return ""
	}

	if v4 := ip.To4(); v4 != nil {
		parts := strings.Split(v4.String(), ".")
		parts[len(parts)-1] = "*"
		return strings.Join(parts, ".")
	}

	// IPv6: оставляем первые два 16-битных сегмента
	segments := strings.Split(ip.String(), ":")
	if len(segments) < 2 {
		return ""
	}
	return segments[0] + ":" + segments[1] + "::*"
}

// clientIP извлекает IP клиента с учетом прокси/балансировщиков
func clientIP(r *http.Request) string {
	// X-Forwarded-For: берем первый адрес в списке (реальный клиент)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// country читает код страны, проставленный прокси.
// Сервер сам geo-lookup не делает.
func country(r *http.Request) string {
	if c := r.Header.Get("CF-IPCountry"); c != "" && c != "XX" {
		return c
	}
	return r.Header.Get("X-Country")
}
