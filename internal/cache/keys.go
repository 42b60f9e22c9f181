package cache

// namespace keeps this service's keys apart when the Redis instance is shared.
const namespace = "vulnhunter:"

// UploadKey is the key of the cached record for an upload id.
func UploadKey(uploadID string) string {
	return namespace + "upload:" + uploadID
}

// RateLimitKey is the request counter of an API key, identified by its prefix.
func RateLimitKey(keyPrefix string) string {
	return namespace + "ratelimit:" + keyPrefix
}
