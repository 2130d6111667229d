// Package adapters implements the External Adapters catalog (spec
// §4.O): one Adapter per external service capability a workflow step
// or chat command can invoke, grounded directly on
// original_source/Backend/orchestration/connectors/*.py and
// base_connector.py's uniform execute(parameters, context) contract.
//
// Every adapter here is safe for concurrent use and keeps no per-call
// state — a struct built once at startup and shared across requests,
// the same way the teacher's llm/anthropic.Provider and
// tool.MCPAdapter are built once and reused.
package adapters

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// newHTTPClient mirrors the teacher's anthropic.Provider transport:
// bounded dial/handshake/idle timeouts so one stuck external service
// can't exhaust the adapter's connection pool.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// paramString reads a string parameter, tolerating a missing key.
func paramString(params map[string]interface{}, key string) string {
	v, _ := params[key].(string)
	return v
}

func paramFloat(params map[string]interface{}, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}
