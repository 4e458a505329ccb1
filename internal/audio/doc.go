// Package audio reassembles synthesized speech delivered as base64 chunks.
// It decodes each chunk independently, drops the ones that fail, joins the
// rest in input order into one WAV resource and keeps assembled resources
// addressable by handle until the caller releases them.
package audio
