// Package overage computes billable overage from current-period usage and
// tier limits, and the upgrade recommendation derived from it.
//
// Rounding per metric:
//   - video storage: started hours above the limit
//   - students: one unit per student above the limit
//   - emails: started blocks of 1,000 above the limit
package overage
