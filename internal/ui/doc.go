// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for building a playlist:
//  1. [PreviewView] : Review the generated track list before resolution
//  2. [ConfirmView] : Confirm the build
//  3. [ResolveView] : Monitor real-time verification and resolution progress
//  4. [ResultView] : Display the created playlist and rejected tracks
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the pipeline engine, providing non-blocking status reporting during resolution.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
