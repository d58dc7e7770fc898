// Package logging constructs the container's structured logger: zap
// with a size-rotated file sink plus console output.
package logging
