// Package main hosts the kctvfetch CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, applies flag overrides,
// and hands off to internal/pipeline for fetch runs. Diagnostic commands
// (resolve, timestamps, history, check) expose single steps of the pipeline so
// a broken selector or OCR key can be investigated without a full run.
package main
