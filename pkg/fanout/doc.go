// Package fanout delivers events to a dynamic set of listeners. Listeners are
// identified by the Handle returned when they are added, and a failing or
// panicking listener never prevents delivery to the others.
package fanout
