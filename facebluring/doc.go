// Package facebluring finds faces in a frame and blurs them in place.
//
// The package is built from three pieces:
//
//   - Detector: the face detection capability. A Detector receives an image
//     and a confidence threshold and returns boxes relative to the image
//     size. PigoDetector is the bundled implementation; tests substitute
//     deterministic stubs.
//   - Fusion: runs one or more detector passes over a frame and merges the
//     results into one padded, deduplicated []geometry.Box. In group mode it
//     adds a second pass in the complementary range mode and a classical
//     cascade pass for small faces.
//   - Redactor: applies a triple Gaussian blur to every box, mutating the
//     frame buffer in place.
//
// # Resources
//
// Cascade files are never probed for implicitly. Callers hand a
// ResourceLocator to the constructors that need model data; PathLocator
// searches an explicit, ordered list of directories.
//
// # Thread Safety
//
// A Fusion and its detectors belong to a single run and must not be shared
// between goroutines. Redactor is stateless.
package facebluring
