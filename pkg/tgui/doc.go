// Package tgui holds small helpers for Telegram HTML parse mode and inline
// keyboards used by outgoing channel posts.
package tgui
