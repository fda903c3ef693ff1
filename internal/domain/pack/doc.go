// Package pack models pre-paid avatar-rendering minute packs and their
// oldest-first consumption.
package pack
