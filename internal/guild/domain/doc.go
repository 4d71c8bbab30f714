// Package domain holds the governance entities and their validation rules.
// Entities carry directory resource handles only; member and admin status is
// derived from live directory state, never stored here.
package domain
