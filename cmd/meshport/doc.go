// Package main hosts the meshport CLI.
//
// Each command loads configuration, assembles the pipeline in-process and
// calls one api.Service operation: resolve a token, republish a scene
// description, convert it, or run all three. Supporting commands inspect
// run history, manage staging workspaces, check the converter binary and
// scaffold configuration.
package main
