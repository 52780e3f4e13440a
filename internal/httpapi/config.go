package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Image translations carry base64 image bytes, so the default is 16 MiB.
var maxBodyBytes int64 = 16 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 16 << 20
		return
	}
	maxBodyBytes = n
}

// maxImageBytes bounds raw image uploads to /detect-text.
var maxImageBytes int64 = 32 << 20

// SetMaxImageBytes configures the raw image upload limit.
func SetMaxImageBytes(n int64) {
	if n <= 0 {
		maxImageBytes = 32 << 20
		return
	}
	maxImageBytes = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server. It must be
// called before NewMux.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
