// Package generate drives one assistant turn against a streaming model: it renders the prompt,
// enforces the context window, turns cumulative model output into deltas, stops on sentinels
// and records the finished reply in the conversation history.
//
// A Turn is a pull iterator. Callers read updates with Next until io.EOF, or hand a callback to
// Run. Stopping early (Close, or cancelling the context) abandons the turn and leaves the
// history as it was before the reply started.
package generate
