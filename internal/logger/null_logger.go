package logger

import "github.com/sirupsen/logrus"

// NewNullLogger returns a Logger that drops every entry. Capture, playback
// and library components fall back to it when built without a logger.
func NewNullLogger() Logger {
	return discard{}
}

// discard never formats its arguments, and Fatal does not exit.
type discard struct{}

func (d discard) WithFields(map[string]interface{}) Logger { return d }
func (d discard) WithField(string, interface{}) Logger    { return d }
func (d discard) WithError(error) Logger                  { return d }

func (discard) Log(logrus.Level, ...interface{}) {}
func (discard) Debug(...interface{})             {}
func (discard) Info(...interface{})              {}
func (discard) Warn(...interface{})              {}
func (discard) Error(...interface{})             {}
func (discard) Fatal(...interface{})             {}

func (discard) Debugf(string, ...interface{}) {}
func (discard) Infof(string, ...interface{})  {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}
