// Package vision renders the subject-focus effect for a captured photo: the
// foreground instance under the user's selection (or every instance) stays
// sharp while the rest of the frame is blurred.
//
// Pipeline owns the debounce and cancellation rules; Segmenter is the
// foreground-mask collaborator. BackgroundSegmenter is a simple built-in
// segmenter for when no neural model is available.
package vision
