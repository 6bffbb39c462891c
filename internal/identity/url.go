package identity

import "fmt"

// BaseURL returns the REST root of an API surface on host.
func BaseURL(host string, apiType APIType, insecure bool) string {
	scheme := "https"
	if insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/api/%s/v1", scheme, host, apiType)
}

// WebsocketURL returns the websocket URL for path under an API surface on host.
func WebsocketURL(host string, apiType APIType, insecure bool, path string) string {
	scheme := "wss"
	if insecure {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s/api/%s/v1%s", scheme, host, apiType, path)
}
