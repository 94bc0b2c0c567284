// Package converter wraps the external glTF to GLB converter.
//
// CLI runs the converter binary with its working directory set to the
// conversion workspace so the relative data/skeleton.glb lookup resolves
// per invocation without touching the process working directory. Func adapts
// in-process implementations.
package converter
