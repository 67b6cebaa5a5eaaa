// Package browser is the fallback media source for when direct extraction
// fails. It drives a headless Chromium page through a fixed sequence: open
// the converter page, fill in the URL, submit, wait for the download link and
// capture the download it triggers.
package browser
