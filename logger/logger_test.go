// (c) Copyright IBM Corp. 2024

package logger_test

import (
	"testing"

	"github.com/mxProject/AdoNetHelper-sub000/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_SetLevel(t *testing.T) {
	examples := map[logger.Level][][]interface{}{
		logger.DebugLevel: {
			{"dbwrap: ", "DEBUG", ": ", "debuglevel"},
			{"dbwrap: ", "INFO", ": ", "infolevel"},
			{"dbwrap: ", "WARN", ": ", "warnlevel"},
			{"dbwrap: ", "ERROR", ": ", "errorlevel"},
		},
		logger.InfoLevel: {
			{"dbwrap: ", "INFO", ": ", "infolevel"},
			{"dbwrap: ", "WARN", ": ", "warnlevel"},
			{"dbwrap: ", "ERROR", ": ", "errorlevel"},
		},
		logger.WarnLevel: {
			{"dbwrap: ", "WARN", ": ", "warnlevel"},
			{"dbwrap: ", "ERROR", ": ", "errorlevel"},
		},
		logger.ErrorLevel: {
			{"dbwrap: ", "ERROR", ": ", "errorlevel"},
		},
	}

	for lvl, expected := range examples {
		t.Run(lvl.String(), func(t *testing.T) {
			p := &printer{}

			l := logger.New(p)
			l.SetLevel(lvl)

			l.Debug("debug", "level")
			l.Info("info", "level")
			l.Warn("warn", "level")
			l.Error("error", "level")

			assert.Equal(t, expected, p.Records)
		})
	}
}

func TestLogger_SetPrefix(t *testing.T) {
	p := &printer{}

	l := logger.New(p)
	l.SetPrefix("test: ")
	l.Error("boom")

	assert.Equal(t, [][]interface{}{{"test: ", "ERROR", ": ", "boom"}}, p.Records)
}

func TestNew_LogLevelEnv(t *testing.T) {
	t.Setenv(logger.LogLevelEnv, "WARN")

	l := logger.New(&printer{})
	assert.Equal(t, logger.WarnLevel, l.Level())
}

func TestNew_UnknownLogLevelEnv(t *testing.T) {
	t.Setenv(logger.LogLevelEnv, "verbose")

	l := logger.New(&printer{})
	assert.Equal(t, logger.ErrorLevel, l.Level())
}

func TestLogger_SetLevel_DebugEnv(t *testing.T) {
	t.Setenv(logger.DebugEnv, "")

	p := &printer{}
	l := logger.New(p)
	l.SetLevel(logger.WarnLevel)

	assert.Equal(t, logger.DebugLevel, l.Level())
	require.NotEmpty(t, p.Records)
	assert.Equal(t, "INFO", p.Records[len(p.Records)-1][1])
}

func TestParseLevel(t *testing.T) {
	examples := map[string]struct {
		Expected logger.Level
		OK       bool
	}{
		"debug":   {logger.DebugLevel, true},
		" Info ":  {logger.InfoLevel, true},
		"WARN":    {logger.WarnLevel, true},
		"error":   {logger.ErrorLevel, true},
		"verbose": {0, false},
	}

	for name, example := range examples {
		t.Run(name, func(t *testing.T) {
			lvl, ok := logger.ParseLevel(name)
			assert.Equal(t, example.OK, ok)
			assert.Equal(t, example.Expected, lvl)
		})
	}
}

func TestLevel_Less(t *testing.T) {
	assert.True(t, logger.DebugLevel.Less(logger.InfoLevel))
	assert.True(t, logger.WarnLevel.Less(logger.ErrorLevel))
	assert.False(t, logger.ErrorLevel.Less(logger.DebugLevel))
}

type printer struct {
	Records [][]interface{}
}

func (p *printer) Print(args ...interface{}) {
	p.Records = append(p.Records, args)
}
