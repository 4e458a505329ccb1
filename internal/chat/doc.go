// Package chat holds the conversation state of the summary chat. State is
// an explicit value changed only by Reduce; a Session runs submissions
// against a summarizer and owns the audio handles its messages reference;
// the Manager keeps sessions and expires idle ones.
package chat
