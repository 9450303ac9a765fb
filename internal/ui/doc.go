// Package ui implements the interactive addon prompt using bubbletea's Elm architecture.
//
// The prompt collects the desired addon list when none is saved yet:
//  1. [InputView] : type an addon URL, resolved through the manifest fetcher
//  2. [ResolvingView] : waiting on the fetch
//  3. [ReviewView] : browse collected addons and drop unwanted ones
//  4. [DoneView] : the list is final, or the prompt was cancelled
//
// [AddonPrompt] implements the standard Init/Update/View pattern, receiving fetch results via the Msg union type.
// Entering "done" or pressing ctrl+d finishes; ctrl+c cancels.
package ui
