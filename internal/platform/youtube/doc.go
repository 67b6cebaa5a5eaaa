// Package youtube resolves video and playlist URLs to audio streams with
// github.com/kkdai/youtube/v2.
package youtube
