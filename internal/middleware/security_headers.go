package middleware

import "net/http"

// hstsValue はHTTPS配信時に付与するStrict-Transport-Securityの値（1年）。
const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeadersConfig はセキュリティヘッダーミドルウェアの設定。
type SecurityHeadersConfig struct {
	// HSTS はStrict-Transport-Securityを付与するかどうか。Secure Cookieを使う構成で有効にする。
	HSTS bool
}

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// レスポンスはすべてJSONのため、CSPはあらゆるリソースの読み込みを禁止する。
// セッションごとのデータを含むため、キャッシュも禁止する。
func NewSecurityHeadersMiddleware(config SecurityHeadersConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cache-Control", "no-store")
			if config.HSTS {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}
