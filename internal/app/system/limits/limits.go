// internal/app/system/limits/limits.go
package limits

// Request body size limits for various features.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxStartFormSize is the maximum size for sign-up and sign-in posts.
	MaxStartFormSize = 16 << 10 // 16 KB

	// MaxLiveMessageSize is the largest websocket message the live username
	// check accepts.
	MaxLiveMessageSize = 512
)
