// Package conversation holds role-tagged conversation state and the sentinel-delimited prompt
// protocol: rendering a history into model input, parsing it back, and cleaning model output
// for display.
package conversation
