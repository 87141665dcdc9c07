//go:build rp2040

package main

import "errors"

var (
	errBadPin         = errors.New("pin out of range")
	errNotConfigured  = errors.New("pin not configured")
	errNoStateMachine = errors.New("no free PIO state machine")
)
