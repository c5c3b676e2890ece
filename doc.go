// Package main provides the entry point for the SIS binding service.
// It runs a web server using the Fiber framework that authenticates users
// with delegated ReCodEx tokens, mirrors SIS courses, scheduling events, and
// enrollments into a local cache via gorm, reconciles user profiles between
// the two systems, and proxies group management operations to ReCodEx.
package main
