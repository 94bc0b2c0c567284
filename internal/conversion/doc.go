// Package conversion orchestrates one glTF to GLB/MML conversion.
//
// Each call downloads the source description, stages it in a private
// workspace together with the auxiliary skeleton, runs the converter, and
// publishes the binary and an MML descriptor pointing at it. Every stage is a
// failure boundary; the workspace is always cleaned up.
package conversion
