package converter

import (
	"context"
	"fmt"
	"os"
)

// Request describes a single conversion.
type Request struct {
	InputPath  string
	OutputPath string
	Merge      bool
	// WorkDir is the directory relative lookups resolve against.
	WorkDir string
}

// Converter turns a staged scene description into a binary scene.
type Converter interface {
	Convert(ctx context.Context, req Request) error
}

// Func adapts a plain function to Converter.
type Func func(ctx context.Context, req Request) error

// Convert calls f.
func (f Func) Convert(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// VerifyOutput reports a missing or empty output file as a failure.
func VerifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("converter produced no output: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("converter output %s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("converter produced empty output %s", path)
	}
	return nil
}
