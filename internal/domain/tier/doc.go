// Package tier holds the static subscription tier tables: per-metric limits,
// overage rates, monthly prices and AI credit allocations.
package tier
