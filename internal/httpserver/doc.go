// Package httpserver runs the detectd HTTP server with graceful shutdown and
// provides health probe handlers.
package httpserver
