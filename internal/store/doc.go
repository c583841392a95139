// Package store provides the durable cross-process state shared by the
// main application and the background widget task: the credential store
// written on login/logout and the pending submission queue. Both sit on
// a single bbolt file so either process can open it, and bbolt's
// exclusive file lock serializes the two against each other.
package store
