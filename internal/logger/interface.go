// Package logger is the structured logging seam shared by the crop engine
// packages and the CLI.
package logger

// Logger provides structured logging with a component name per entry
type Logger interface {
	Info(component, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Debug(component, message string, fields map[string]interface{})
}

type nop struct{}

// Nop discards everything. Library packages start with it until a caller
// installs a real logger.
func Nop() Logger { return nop{} }

func (nop) Info(string, string, map[string]interface{})    {}
func (nop) Error(string, error, map[string]interface{})    {}
func (nop) Warning(string, string, map[string]interface{}) {}
func (nop) Debug(string, string, map[string]interface{})   {}

// OrNop returns l, or Nop when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
