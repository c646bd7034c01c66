// Package mail provides the dispatch side of the mail dispatcher: the item
// model and its validation, the SMTP transport built on gomail, and the
// dispatch queue that drains queued items on a managed background worker.
package mail
