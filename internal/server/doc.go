// Package server implements the HTTP API of the summary chat service: text
// formatting, audio assembly and playback handles, chat sessions over plain
// HTTP and websocket, plus health, statistics and Prometheus endpoints.
package server
