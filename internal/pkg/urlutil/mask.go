// Package urlutil предоставляет утилиты для безопасной работы с URL.
package urlutil

import "net/url"

// MaskURL маскирует URL для безопасного логирования.
// Скрывает path и query параметры, которые могут содержать токены или credentials.
// Пример: "http://pushgateway:9091/metrics/job/apk-restore" → "http://pushgateway:9091/***"
func MaskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***invalid-url***"
	}
	// Показываем только scheme и host
	return u.Scheme + "://" + u.Host + "/***"
}
