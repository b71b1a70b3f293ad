package types

import (
	"time"
)

// RequestConfig bounds the request/response stream used to talk to remote
// wallet sessions.
type RequestConfig struct {
	RequestQueueSize int
	RequestTimeout   time.Duration
	ClearInterval    time.Duration
}

func DefaultConfig() *RequestConfig {
	return &RequestConfig{
		RequestQueueSize: 30,
		RequestTimeout:   time.Minute * 5,
		ClearInterval:    time.Minute,
	}
}
