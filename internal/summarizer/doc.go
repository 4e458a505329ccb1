// Package summarizer implements the clients that turn text, a URL or an
// uploaded file into a summary. APIClient talks to the summarization backend
// over JSON and multipart requests with retries, rate limiting and
// statistics; OpenAIClient summarizes text directly against an
// OpenAI-compatible chat completion endpoint.
package summarizer
